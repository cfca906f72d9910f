package commands

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"logsmith/src/internal/config"
	"logsmith/src/internal/trace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHashCommand(passwords ...string) (*HashCommand, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	c := &HashCommand{output: &out, errOut: &errOut}
	c.readPassword = func(string) (string, error) {
		if len(passwords) == 0 {
			return "", errors.New("no input")
		}
		p := passwords[0]
		passwords = passwords[1:]
		return p, nil
	}
	return c, &out
}

func TestHashCommand(t *testing.T) {
	phcPattern := regexp.MustCompile(`password_hash = "(\$argon2id\$[^"]+)"`)

	t.Run("PasswordFlag", func(t *testing.T) {
		c, out := newTestHashCommand()
		require.NoError(t, c.Execute([]string{"-u", "ops", "-p", "s3cret"}))

		assert.Contains(t, out.String(), `username = "ops"`)
		m := phcPattern.FindStringSubmatch(out.String())
		require.Len(t, m, 2)
		ok, err := trace.VerifyPassword("s3cret", m[1])
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Prompted", func(t *testing.T) {
		c, out := newTestHashCommand("s3cret", "s3cret")
		require.NoError(t, c.Execute([]string{"--user", "ops"}))
		assert.Regexp(t, phcPattern, out.String())
	})

	t.Run("PromptMismatch", func(t *testing.T) {
		c, _ := newTestHashCommand("one", "two")
		assert.ErrorContains(t, c.Execute([]string{"-u", "ops"}), "don't match")
	})

	t.Run("MissingUser", func(t *testing.T) {
		c, _ := newTestHashCommand()
		assert.ErrorContains(t, c.Execute(nil), "username required")
	})

	t.Run("Token", func(t *testing.T) {
		c, out := newTestHashCommand()
		require.NoError(t, c.Execute([]string{"-k", "-l", "24"}))
		assert.Contains(t, out.String(), `type = "bearer"`)
		assert.Regexp(t, `tokens = \["[A-Za-z0-9_-]{32}"\]`, out.String())
	})

	t.Run("TokenTooLong", func(t *testing.T) {
		c, _ := newTestHashCommand()
		assert.Error(t, c.Execute([]string{"-k", "-l", "1024"}))
	})
}

func TestTagFlags(t *testing.T) {
	tags := tagFlags{}
	require.NoError(t, tags.Set("disk=sda1"))
	require.NoError(t, tags.Set("route=/v1=x"))
	assert.Equal(t, "sda1", tags["disk"])
	assert.Equal(t, "/v1=x", tags["route"])
	assert.Error(t, tags.Set("novalue"))
	assert.Error(t, tags.Set("=x"))
}

func TestEmitCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Logging.LogToConsole = false
	cfg.Logging.LogToFile = true
	cfg.Logging.FileName = "emit"
	cfg.Logging.LogPath = dir
	cfg.Diagnostics.Output = "none"

	c := &EmitCommand{
		errOut: &bytes.Buffer{},
		load:   func() (*config.Config, error) { return cfg, nil },
	}

	require.NoError(t, c.Execute([]string{"-l", "error", "-s", "Writer.flush", "-t", "disk=sda1", "disk", "full"}))

	data, err := os.ReadFile(filepath.Join(dir, "emit.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "| ERROR | disk full | Writer.flush | disk=sda1 |")

	t.Run("BadLevel", func(t *testing.T) {
		assert.Error(t, c.Execute([]string{"-l", "loud", "x"}))
	})

	t.Run("NoMessage", func(t *testing.T) {
		assert.ErrorContains(t, c.Execute([]string{"-l", "info"}), "message required")
	})
}

func TestCommandRouter(t *testing.T) {
	r := NewCommandRouter()

	handled, err := r.Route([]string{"logsmith"})
	assert.False(t, handled)
	assert.NoError(t, err)

	handled, err = r.Route([]string{"logsmith", "--logging.level=info"})
	assert.False(t, handled)
	assert.NoError(t, err)

	handled, err = r.Route([]string{"logsmith", "frobnicate"})
	assert.False(t, handled)
	assert.ErrorContains(t, err, "unknown command: frobnicate")

	for _, name := range []string{"version", "help", "hash", "emit", "init-config"} {
		h, ok := r.GetCommand(name)
		require.True(t, ok, name)
		assert.NotEmpty(t, h.Description())
		assert.True(t, strings.Contains(h.Help(), "Usage"), name)
	}
}

func TestInitConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logsmith.toml")
	c := NewInitConfigCommand()

	require.NoError(t, c.Execute([]string{path}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "log_to_console")

	err = c.Execute([]string{path})
	assert.ErrorIs(t, err, config.ErrConfigExists)
}
