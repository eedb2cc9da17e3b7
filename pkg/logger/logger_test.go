package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_BeforeInitReturnsNop(t *testing.T) {
	mu.Lock()
	globalLogger = nil
	mu.Unlock()

	l := Get()
	require.NotNil(t, l)
	assert.NoError(t, Sync())
}

func TestInit_InvalidLevel(t *testing.T) {
	err := Init("loud", true)
	assert.Error(t, err)
}

func TestInit_SetsGlobal(t *testing.T) {
	require.NoError(t, Init("debug", false))
	assert.True(t, Get().Core().Enabled(-1)) // debug
}
