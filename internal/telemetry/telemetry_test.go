package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimProtocol(t *testing.T) {
	assert.Equal(t, "localhost:4318", trimProtocol("http://localhost:4318"))
	assert.Equal(t, "otel.example.com", trimProtocol("https://otel.example.com"))
	assert.Equal(t, "collector:4318", trimProtocol("collector:4318"))
}

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Options{ServiceName: "living-test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
