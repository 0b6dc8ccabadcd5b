package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseCommon(t *testing.T, args ...string) (*commonFlags, *flag.FlagSet) {
	t.Helper()
	t.Setenv("EVENTIPC_CONFIG", "")
	t.Setenv("EVENTIPC_KEY", "")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var c commonFlags
	c.register(fs)
	require.NoError(t, fs.Parse(args))
	return &c, fs
}

func TestSettings_FlagsOverrideConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eventipc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpoint:\n  url: tcp://10.0.0.1\n  port: 6000\nserializer: proto\n"), 0o600))

	c, fs := parseCommon(t, "-config", path, "-port", "7000", "-log-level", "debug")
	s, err := c.settings(fs)
	require.NoError(t, err)

	assert.Equal(t, "tcp://10.0.0.1", s.URL)
	assert.Equal(t, 7000, s.Port)
	assert.Equal(t, "proto", s.Serializer)
	assert.Equal(t, "debug", s.LogLevel)
}

func TestSettings_KeyFromEnvironment(t *testing.T) {
	c, fs := parseCommon(t, "-cipher", "aes-256-gcm")
	_, err := c.settings(fs)
	assert.ErrorContains(t, err, "encryption.key")

	c, fs = parseCommon(t, "-cipher", "aes-256-gcm",
		"-key", "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	s, err := c.settings(fs)
	require.NoError(t, err)
	assert.Equal(t, "aes-256-gcm", s.Cipher)
}

func TestSettings_InvalidOverride(t *testing.T) {
	c, fs := parseCommon(t, "-port", "65535")
	_, err := c.settings(fs)
	assert.ErrorContains(t, err, "endpoint.port")
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abcdef01", shortID("abcdef0123456789"))
	assert.Equal(t, "abc", shortID("abc"))
}

func TestSetupLogger(t *testing.T) {
	ctx := context.Background()

	logger := setupLogger("warn", "text")
	assert.False(t, logger.Enabled(ctx, slog.LevelInfo))
	assert.True(t, logger.Enabled(ctx, slog.LevelWarn))

	logger = setupLogger("nonsense", "json")
	assert.True(t, logger.Enabled(ctx, slog.LevelInfo))
	assert.False(t, logger.Enabled(ctx, slog.LevelDebug))

	h := &colorHandler{level: slog.LevelDebug}
	grouped := h.WithGroup("net").WithAttrs([]slog.Attr{slog.String("addr", "x")})
	ch, ok := grouped.(*colorHandler)
	require.True(t, ok)
	assert.Equal(t, "net.addr", ch.attrs[0].Key)
	assert.Equal(t, "net.", ch.prefix)
}
