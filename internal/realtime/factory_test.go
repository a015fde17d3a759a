package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/doubt-service/internal/config"
)

func TestNewSelectsBackend(t *testing.T) {
	b, err := New(config.RealtimeConfig{Backend: config.RealtimeMemory}, nil, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryBroker{}, b)

	_, err = New(config.RealtimeConfig{Backend: config.RealtimeRedis}, nil, nil, nil)
	assert.ErrorContains(t, err, "requires a redis client")

	_, err = New(config.RealtimeConfig{Backend: config.RealtimeNATS}, nil, nil, nil)
	assert.ErrorContains(t, err, "requires a nats connection")

	_, err = New(config.RealtimeConfig{Backend: "kafka"}, nil, nil, nil)
	assert.ErrorContains(t, err, "unknown realtime backend")
}
