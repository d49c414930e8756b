package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateSQLite(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite://"+filepath.Join(t.TempDir(), "stash.db"))

	var out bytes.Buffer
	app := newCLIApp()
	app.Writer = &out

	require.NoError(t, app.Run([]string{"stash", "migrate"}))
	assert.Contains(t, out.String(), "schema ready (sqlite)")
}

func TestMigrateMemoryIsNoop(t *testing.T) {
	t.Setenv("DATABASE_URL", "memory")

	var out bytes.Buffer
	app := newCLIApp()
	app.Writer = &out

	require.NoError(t, app.Run([]string{"stash", "migrate"}))
	assert.Contains(t, out.String(), "schema ready (memory)")
}

func TestServeRejectsBadConfig(t *testing.T) {
	t.Setenv("BLOB_BACKEND", "ftp")

	err := newCLIApp().Run([]string{"stash", "serve"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported blob backend")
}
