package bootstrap

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/neuroscan-api/internal/config"
	"github.com/jwalitptl/neuroscan-api/internal/email"
	"github.com/jwalitptl/neuroscan-api/pkg/logger"
	"github.com/jwalitptl/neuroscan-api/pkg/metrics"
)

func quietLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

func TestOpenStoreMemory(t *testing.T) {
	res, err := OpenStore(context.Background(), config.DatabaseConfig{Driver: "memory"}, metrics.NewNop())
	require.NoError(t, err)
	defer res.Close(quietLogger())

	assert.Nil(t, res.DB)
	require.NotNil(t, res.Store)
	assert.NoError(t, res.Store.Health.Ping(context.Background()))
}

func TestOpenStorageLocal(t *testing.T) {
	files, err := OpenStorage(context.Background(), config.StorageConfig{Driver: "local", LocalDir: t.TempDir()}, config.Secrets{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, files.Put(ctx, "records/1/scan.png", strings.NewReader("img"), "image/png"))
	rc, err := files.Get(ctx, "records/1/scan.png")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "img", string(body))
}

func TestOpenStorageUnknownDriver(t *testing.T) {
	_, err := OpenStorage(context.Background(), config.StorageConfig{Driver: "ftp"}, config.Secrets{})
	assert.Error(t, err)
}

func TestNoBrokerOrPublisherWithoutURLs(t *testing.T) {
	res := &Resources{}
	cfg := &config.Config{}

	broker, err := res.OpenBroker(cfg, quietLogger())
	require.NoError(t, err)
	assert.Nil(t, broker)

	pub, err := res.OpenPublisher(cfg, broker, quietLogger())
	require.NoError(t, err)
	assert.Nil(t, pub)
}

func TestEmailSenderFallsBackToLog(t *testing.T) {
	sender := EmailSender(&config.Config{}, quietLogger())
	_, ok := sender.(*email.LogSender)
	assert.True(t, ok)

	sender = EmailSender(&config.Config{SMTP: config.SMTPConfig{Host: "smtp.example.com", Port: 587}}, quietLogger())
	_, ok = sender.(*email.SMTPSender)
	assert.True(t, ok)
}
