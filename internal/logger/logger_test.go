package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestInitLevel(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	Init("debug", false)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	Init("loud", true)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	Init("", false)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
