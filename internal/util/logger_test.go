// internal/util/logger_test.go
package util

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestNewLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, "warn")

	l.Info("dropped")
	assert.Zero(t, buf.Len(), "info should be filtered at warn level")

	l.Warn("balance drift", "account_id", int64(7))
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "balance drift", entry["msg"])
	assert.Equal(t, float64(7), entry["account_id"])
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("amend: %w", ErrMovementNotFound)))
	assert.True(t, IsNotFound(ErrAccountNotFound))
	assert.False(t, IsNotFound(ErrInvalidInput))
	assert.False(t, IsNotFound(errors.New("resource not found")))
	assert.True(t, IsError(fmt.Errorf("wrap: %w", ErrBalanceDrift), ErrBalanceDrift))
}
