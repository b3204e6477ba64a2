package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdsc-ordes/debates-analytics/internal/transcript"
)

func TestSubtitleField(t *testing.T) {
	field, err := subtitleField(transcript.TypeOriginal)
	require.NoError(t, err)
	assert.Equal(t, "subtitles_original", field)

	field, err = subtitleField(transcript.TypeTranslation)
	require.NoError(t, err)
	assert.Equal(t, "subtitles_translation", field)

	_, err = subtitleField("transcript")
	require.Error(t, err)
}
