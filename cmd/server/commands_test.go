package main

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/jsonhost/internal/config"
)

func TestFlagsOverrideOnlyWhenSet(t *testing.T) {
	root := newRootCmd()
	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	require.NoError(t, serve.ParseFlags([]string{"--port", "9000", "--db-driver", "postgres"}))

	f := &flags{port: 9000, dbDriver: "postgres"}
	cfg := &config.Config{
		Server: config.ServerConfig{Port: 8080},
		DB:     config.DBConfig{Driver: config.DriverSQLite, Path: "from-env.db", URL: "postgres://env"},
	}
	f.apply(serve, cfg)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, "from-env.db", cfg.DB.Path)
	assert.Equal(t, "postgres://env", cfg.DB.URL)
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()

	for _, path := range [][]string{{"serve"}, {"migrate"}, {"migrate", "up"}, {"migrate", "status"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestMigrateRejectsInvalidConfig(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", ":memory:")

	root := newRootCmd()
	root.SetArgs([]string{"migrate"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestMigrateUpInMemory(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "text")

	root := newRootCmd()
	root.SetArgs([]string{"migrate", "up", "--db-path", ":memory:"})
	assert.NoError(t, root.Execute())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "json", slog.LevelWarn).Info("hidden")
	newLogger(&buf, "json", slog.LevelWarn).Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	newLogger(&buf, "text", slog.LevelInfo).Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}
