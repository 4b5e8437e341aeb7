package email

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/pkg/logger"
)

func TestNew_PicksLogSenderWithoutHost(t *testing.T) {
	s := New(SMTPConfig{}, logger.FromGlobal())
	_, ok := s.(*LogSender)
	assert.True(t, ok)

	s = New(SMTPConfig{Host: "smtp.example.com", Port: 587}, logger.FromGlobal())
	_, ok = s.(*SMTPSender)
	assert.True(t, ok)
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewLogger(&logger.Config{Level: logger.InfoLevel, Output: &buf})

	err := NewLogSender(l).Send(context.Background(), model.EmailNotification{
		To:      "p@x.io",
		Subject: "Confirmation Code",
		Body:    "Your code is 123456",
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "p@x.io")
	assert.Contains(t, buf.String(), "Confirmation Code")
}

func TestSMTPSender_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 1}).Send(ctx, model.EmailNotification{To: "p@x.io"})
	assert.ErrorIs(t, err, context.Canceled)
}
