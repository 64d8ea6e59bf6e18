package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectVoice(t *testing.T) {
	voices := []Voice{
		{ID: "en-us", Name: "English (America)"},
		{ID: "Daniel", Name: "Daniel"},
		{ID: "en-gb-x-rp", Name: "English (Received Pronunciation)"},
	}

	v, ok := SelectVoice(voices, "daniel")
	require.True(t, ok)
	assert.Equal(t, "Daniel", v.ID)

	v, ok = SelectVoice(voices, "EN-GB")
	require.True(t, ok)
	assert.Equal(t, "en-gb-x-rp", v.ID)

	_, ok = SelectVoice(voices, "zira")
	assert.False(t, ok)

	_, ok = SelectVoice(voices, "")
	assert.False(t, ok)
}

func TestParseEspeakVoices(t *testing.T) {
	out := []byte(`Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  af              --/M      Afrikaans          gmw/af
 2  en-us           --/M      English_(America)  gmw/en-US            (en 3)
`)
	voices := parseEspeakVoices(out)
	require.Len(t, voices, 2)
	assert.Equal(t, Voice{ID: "en-us", Name: "English (America)"}, voices[1])
}

func TestParseSayVoices(t *testing.T) {
	out := []byte(`Daniel              en_GB    # Hello, my name is Daniel.
Bad News            en_US    # The light you see at the end of the tunnel.
`)
	voices := parseSayVoices(out)
	require.Len(t, voices, 2)
	assert.Equal(t, "Daniel", voices[0].ID)
	assert.Equal(t, "Bad News", voices[1].Name)
}
