package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadParsesFullConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: "127.0.0.1"
  port: 9090
  db_path: "/var/lib/croptalk"
  shutdown_timeout: 30s
security:
  cors:
    allowed_origins: ["https://shop.example.com"]
  rate_limit:
    rps: 10
    burst: 20
logging:
  level: debug
limits:
  max_content_bytes: 64KB
reconcile:
  enabled: true
  cron: "0 3 * * *"
  batch_size: 100
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9090", cfg.Addr())
	require.Equal(t, "/var/lib/croptalk", cfg.Server.DBPath)
	require.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout.Duration())
	require.Equal(t, []string{"https://shop.example.com"}, cfg.Security.CORS.AllowedOrigins)
	require.Equal(t, 10.0, cfg.Security.RateLimit.RPS)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, int64(64_000), cfg.Limits.MaxContentBytes.Int64())
	require.True(t, cfg.Reconcile.Enabled)
	require.Equal(t, 100, cfg.Reconcile.BatchSize)
}

func TestDurationUnmarshal(t *testing.T) {
	cases := map[string]time.Duration{
		`"100ms"`: 100 * time.Millisecond,
		`"2m"`:    2 * time.Minute,
		`5`:       5 * time.Second,
		`"1.5"`:   1500 * time.Millisecond,
	}
	for raw, want := range cases {
		var d Duration
		require.NoError(t, yaml.Unmarshal([]byte(raw), &d), raw)
		require.Equal(t, want, d.Duration(), raw)
	}

	var d Duration
	require.Error(t, yaml.Unmarshal([]byte(`"soon"`), &d))
}

func TestSizeBytesUnmarshal(t *testing.T) {
	cases := map[string]int64{
		`"64KB"`: 64_000,
		`"1MiB"`: 1 << 20,
		`1024`:   1024,
		`"2048"`: 2048,
	}
	for raw, want := range cases {
		var s SizeBytes
		require.NoError(t, yaml.Unmarshal([]byte(raw), &s), raw)
		require.Equal(t, want, s.Int64(), raw)
	}

	var s SizeBytes
	require.Error(t, yaml.Unmarshal([]byte(`"plenty"`), &s))
}

func TestLoadEffectivePrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: "127.0.0.1"
  port: 7000
  db_path: "/from/file"
`), 0o600))

	flags := Flags{Addr: ":8080", DB: "./.database", Config: path, Set: map[string]bool{}}

	// file only
	eff, err := LoadEffective(flags)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:7000", eff.Addr)
	require.Equal(t, "/from/file", eff.DBPath)
	require.Equal(t, "config", eff.Source)

	// env overlays the file
	t.Setenv("CROPTALK_SERVER_ADDR", "0.0.0.0:7100")
	t.Setenv("CROPTALK_DB_PATH", "/from/env")
	eff, err = LoadEffective(flags)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:7100", eff.Addr)
	require.Equal(t, "/from/env", eff.DBPath)
	require.Equal(t, "env", eff.Source)

	// explicit flags win over both
	flags.Addr = ":7200"
	flags.DB = "/from/flags"
	flags.Set = map[string]bool{"addr": true, "db": true}
	eff, err = LoadEffective(flags)
	require.NoError(t, err)
	require.Equal(t, ":7200", eff.Addr)
	require.Equal(t, "/from/flags", eff.DBPath)
	require.Equal(t, "flags", eff.Source)
}

func TestLoadEffectiveMissingFileFallsBackToFlags(t *testing.T) {
	flags := Flags{
		Addr:   ":8080",
		DB:     "./.database",
		Config: filepath.Join(t.TempDir(), "nope.yaml"),
		Set:    map[string]bool{},
	}
	eff, err := LoadEffective(flags)
	require.NoError(t, err)
	require.Equal(t, ":8080", eff.Addr)
	require.Equal(t, "./.database", eff.DBPath)
}
