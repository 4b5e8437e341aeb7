package messaging

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	subject string
	payload []byte
}

func (c *capturePublisher) Publish(_ context.Context, subject string, payload []byte) error {
	c.subject = subject
	c.payload = payload
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func TestPublishJSON(t *testing.T) {
	p := &capturePublisher{}

	err := PublishJSON(context.Background(), p, "doctor.approved", map[string]string{"email": "d@x.io"})
	require.NoError(t, err)

	assert.Equal(t, "doctor.approved", p.subject)
	var got map[string]string
	require.NoError(t, json.Unmarshal(p.payload, &got))
	assert.Equal(t, "d@x.io", got["email"])
}

func TestPublishJSON_MarshalError(t *testing.T) {
	p := &capturePublisher{}

	err := PublishJSON(context.Background(), p, "x", make(chan int))
	assert.Error(t, err)
	assert.Empty(t, p.subject)
}
