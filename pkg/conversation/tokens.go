package conversation

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
)

// perMessageOverhead approximates the role/separator tokens chat templates
// add around every message.
const perMessageOverhead = 4

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
	codecErr  error
)

func defaultCodec() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
		if codecErr != nil {
			codecErr = errors.Wrap(codecErr, "could not load cl100k_base codec")
		}
	})
	return codec, codecErr
}

// CountTokens estimates the prompt size of msgs. Local models use their own
// vocabularies, so this is only an indication for the status bar and logs.
func CountTokens(msgs []Message) (int, error) {
	c, err := defaultCodec()
	if err != nil {
		return 0, err
	}
	total := 0
	for _, m := range msgs {
		ids, _, err := c.Encode(m.Content)
		if err != nil {
			return 0, errors.Wrap(err, "error encoding message")
		}
		total += len(ids) + perMessageOverhead
	}
	return total, nil
}

// EstimateTokens is CountTokens with failures logged and reported as -1.
func EstimateTokens(msgs []Message) int {
	n, err := CountTokens(msgs)
	if err != nil {
		log.Debug().Err(err).Msg("token estimate unavailable")
		return -1
	}
	return n
}
