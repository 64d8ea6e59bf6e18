package inference

import (
	"strings"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"
)

// responseShape is one accepted layout of a completion response body.
type responseShape struct {
	name string
	path []string
}

// shapes are tried in order; the first one whose path resolves to a string
// wins.
var shapes = []responseShape{
	{name: "chat-completion", path: []string{"choices", "[0]", "message", "content"}},
	{name: "text-completion", path: []string{"choices", "[0]", "text"}},
	{name: "content-list", path: []string{"data", "[0]", "content"}},
}

var ErrUnknownShape = errors.New("response matches no accepted shape")

// extractText returns the trimmed assistant text and the name of the shape
// that matched.
func extractText(body []byte) (string, string, error) {
	if _, dataType, _, err := jsonparser.Get(body); err != nil {
		return "", "", errors.Wrap(err, "invalid JSON")
	} else if dataType != jsonparser.Object {
		return "", "", errors.Errorf("expected a JSON object, got %s", dataType)
	}

	for _, s := range shapes {
		text, err := jsonparser.GetString(body, s.path...)
		if err != nil {
			continue
		}
		return strings.TrimSpace(text), s.name, nil
	}
	return "", "", ErrUnknownShape
}
