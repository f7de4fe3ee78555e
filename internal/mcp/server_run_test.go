package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-forms/internal/config"
)

func TestServer_Run_ServerModeStopsOnCancel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Mode = "server"
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.DataDirectory = t.TempDir()

	s, err := NewServer(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestFormatServerInfo(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDirectory = t.TempDir()
	cfg.Version = "2.1.0"
	cfg.Workers = 8
	cfg.ConverterSlots = 3

	s, err := NewServer(cfg)
	require.NoError(t, err)

	info := s.formatServerInfo()
	assert.Contains(t, info, "mcp-pdf-forms v2.1.0 - Server Information")
	assert.Contains(t, info, "Workers: 8, Converter Slots: 3")
	assert.Contains(t, info, "Signature Image Cache TTL: 15s")
	assert.Contains(t, info, "Data Directory: "+s.paths.Root())
}
