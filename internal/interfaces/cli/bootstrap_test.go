package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/erp/mall-admin/internal/infrastructure/config"
	"github.com/erp/mall-admin/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL, backend, sessionPath string) *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "mall-admin", Env: "test"},
		API: config.APIConfig{
			BaseURL:     baseURL,
			Timeout:     5 * time.Second,
			LoginPath:   "/admin/login",
			ProfilePath: "/admin/info",
		},
		Session:   config.SessionConfig{Backend: backend, Path: sessionPath, Key: "mall-admin/session"},
		Log:       config.LogConfig{Level: "error", Format: "console", Output: "stderr"},
		Cache:     config.CacheConfig{KeepPreviousData: true},
		Telemetry: config.TelemetryConfig{SamplingRatio: 1, ServiceName: "mall-admin-test"},
	}
}

func TestBootstrap_FileSessionSurvivesRestart(t *testing.T) {
	server := testutil.NewMallServer(t, 3)
	cfg := testConfig(server.URL, "file", filepath.Join(t.TempDir(), "session.json"))
	ctx := context.Background()

	var errOut bytes.Buffer
	first, err := Bootstrap(ctx, cfg, Streams{In: strings.NewReader(""), Out: &bytes.Buffer{}, Err: &errOut})
	require.NoError(t, err)
	require.NoError(t, first.App.Run(ctx, []string{"login", "-u", testutil.AdminUsername, "-p", testutil.AdminPassword}))
	first.Close()
	assert.Contains(t, errOut.String(), "Signed in as admin")

	var out bytes.Buffer
	second, err := Bootstrap(ctx, cfg, Streams{In: strings.NewReader(""), Out: &out, Err: &errOut})
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, second.App.Run(ctx, []string{"list", "brand", "-size", "5"}))
	assert.Contains(t, out.String(), "page 1/3, 5 per page, 12 total")
	assert.Equal(t, 1, server.Hits("POST", "/admin/login"))
}

func TestBootstrap_ExpiredSessionAsksOnTerminal(t *testing.T) {
	server := testutil.NewMallServer(t, 3)
	cfg := testConfig(server.URL, "memory", "")
	ctx := context.Background()

	var errOut bytes.Buffer
	rt, err := Bootstrap(ctx, cfg, Streams{In: strings.NewReader("y\n"), Out: &bytes.Buffer{}, Err: &errOut})
	require.NoError(t, err)
	defer rt.Close()

	require.NoError(t, rt.App.Run(ctx, []string{"login", "-u", testutil.AdminUsername, "-p", testutil.AdminPassword}))
	server.ExpireTokens()

	assert.Error(t, rt.App.Run(ctx, []string{"get", "brand", "1"}))
	assert.Contains(t, errOut.String(), "[y/N]")
	assert.ErrorIs(t, rt.App.Run(ctx, []string{"whoami"}), ErrLoginRequired)
}

func TestBootstrap_MetricsListener(t *testing.T) {
	server := testutil.NewMallServer(t, 3)
	cfg := testConfig(server.URL, "memory", "")
	cfg.Telemetry.MetricsAddr = "127.0.0.1:0"

	rt, err := Bootstrap(context.Background(), cfg, Streams{In: strings.NewReader(""), Out: &bytes.Buffer{}, Err: &bytes.Buffer{}})
	require.NoError(t, err)
	defer rt.Close()

	require.NoError(t, rt.App.Run(context.Background(), []string{"login", "-u", testutil.AdminUsername, "-p", testutil.AdminPassword}))
	families, err := rt.Metrics.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestLogConfig(t *testing.T) {
	cfg := testConfig("http://localhost", "memory", "")
	cfg.Log = config.LogConfig{}
	assert.Equal(t, "console", logConfig(cfg).Format)

	cfg.App.Env = "production"
	assert.Equal(t, "json", logConfig(cfg).Format)

	cfg.Log.Format = "console"
	cfg.Log.Level = "debug"
	lc := logConfig(cfg)
	assert.Equal(t, "console", lc.Format)
	assert.Equal(t, "debug", lc.Level)
	assert.Equal(t, "stderr", lc.Output)
}
