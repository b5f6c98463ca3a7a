package embeddednats

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"skillmap/pkg/config"
	"skillmap/pkg/shared"
)

func startTestServer(t *testing.T) *EmbeddedNATS {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Port = server.RANDOM_PORT
	cfg.DataDir = t.TempDir()

	en, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, en.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = en.Shutdown(ctx)
	})
	return en
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.NATSConfig{Port: 4333, DataDir: "/tmp/x"})
	assert.Equal(t, 4333, cfg.Port)
	assert.Equal(t, "/tmp/x", cfg.DataDir)
	assert.Equal(t, "skillmap", cfg.JetStreamDomain)

	cfg = FromConfig(config.NATSConfig{})
	assert.Equal(t, 4222, cfg.Port)
	assert.Equal(t, "./data/nats", cfg.DataDir)
}

func TestNew_RequiresDataDir(t *testing.T) {
	_, err := New(&Config{Port: 4222}, nil)
	assert.Error(t, err)
}

func TestHealthCheck_BeforeStart(t *testing.T) {
	en, err := New(nil, nil)
	require.NoError(t, err)
	assert.Error(t, en.HealthCheck())
	assert.Error(t, en.PublishWithDedup("skillmap.events.tag.created", []byte("{}"), "x"))
}

func TestEmbeddedNATS_Streams(t *testing.T) {
	en := startTestServer(t)
	require.NoError(t, en.HealthCheck())

	require.NoError(t, en.CreateSkillMapStreams())
	// Declaring twice updates in place.
	require.NoError(t, en.CreateSkillMapStreams())

	info, err := en.JetStream().ConsumerInfo(shared.StreamEvents, shared.ConsumerAuditProcessor)
	require.NoError(t, err)
	assert.Equal(t, shared.SubjectEventsAll, info.Config.FilterSubject)

	subject := shared.EventSubject(shared.EntityProfile, shared.EventTypeCreated)
	require.NoError(t, en.PublishWithDedup(subject, []byte(`{"id":"1"}`), "p-1-created-1"))
	require.NoError(t, en.PublishWithDedup(subject, []byte(`{"id":"1"}`), "p-1-created-1"))
	require.NoError(t, en.PublishWithDedup(subject, []byte(`{"id":"2"}`), "p-1-created-2"))

	stream, err := en.JetStream().StreamInfo(shared.StreamEvents)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stream.State.Msgs)
}
