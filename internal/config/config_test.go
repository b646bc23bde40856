package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, "drop", cfg.Backpressure)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.ICEServers)
	assert.Equal(t, "ffmpeg", cfg.Transcode.FFmpegPath)
	assert.Equal(t, "ts", cfg.Transcode.SegmentExt)
	assert.True(t, cfg.Transcode.PruneSuperseded)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	yaml := `
mode: debug
port: 9000
backpressure: kick
transcode:
  output_dir: /tmp/segments
  public_base_url: http://cdn.example/
  segment_ext: .mp4
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("WATCHPARTY_TRANSCODE_SEGMENT_SECONDS", "4")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "kick", cfg.Backpressure)
	assert.Equal(t, "/tmp/segments", cfg.Transcode.OutputDir)
	assert.Equal(t, "http://cdn.example", cfg.Transcode.PublicBaseURL)
	assert.Equal(t, "mp4", cfg.Transcode.SegmentExt)
	assert.Equal(t, 4, cfg.Transcode.SegmentSeconds)
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backpressure: explode\n"), 0o600))
	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadRejectsEmptySegmentExt(t *testing.T) {
	for _, ext := range []string{`""`, `"."`, `" "`} {
		path := filepath.Join(t.TempDir(), "ext.yaml")
		require.NoError(t, os.WriteFile(path, []byte("transcode:\n  segment_ext: "+ext+"\n"), 0o600))
		_, err := LoadFile(path)
		assert.Error(t, err, "segment_ext %s", ext)
	}
}
