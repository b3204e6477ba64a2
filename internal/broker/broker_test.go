package broker

import (
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload(t *testing.T) {
	task := asynq.NewTask(TaskConvert, []byte(`{"media_id":"m1","s3_key":"m1/source.mp4"}`))

	payload, err := DecodePayload(task)
	require.NoError(t, err)
	assert.Equal(t, "m1", payload.MediaID)
	assert.Equal(t, "m1/source.mp4", payload.S3Key)
}

func TestDecodePayload_Malformed(t *testing.T) {
	task := asynq.NewTask(TaskConvert, []byte(`{`))

	_, err := DecodePayload(task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), TaskConvert)
}
