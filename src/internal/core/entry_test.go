package core

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntry(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		e := NewEntry("hello")
		assert.Equal(t, "hello", e.Message)
		assert.Equal(t, LevelDebug, e.Level)
		assert.Empty(t, e.Source)
		assert.Empty(t, e.Tags)
		assert.Nil(t, e.Err)
		assert.False(t, e.Time.IsZero())

		_, err := uuid.Parse(e.CorrelationID)
		assert.NoError(t, err, "correlation id should be a UUID")
	})

	t.Run("UniqueCorrelationIDs", func(t *testing.T) {
		seen := make(map[string]struct{})
		for i := 0; i < 500; i++ {
			id := NewEntry("x").CorrelationID
			_, dup := seen[id]
			require.False(t, dup)
			seen[id] = struct{}{}
		}
	})

	t.Run("Options", func(t *testing.T) {
		at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
		e := NewEntry("disk full",
			WithLevel(LevelError),
			WithSource("Writer.flush"),
			WithTags(map[string]string{"disk": "sda1"}),
			WithTag("host", "db-1"),
			WithTime(at),
			WithRequest(RequestInfo{URL: "/upload", ServerName: "web-1"}),
		)
		assert.Equal(t, LevelError, e.Level)
		assert.Equal(t, "Writer.flush", e.Source)
		assert.Equal(t, map[string]string{"disk": "sda1", "host": "db-1"}, e.Tags)
		assert.Equal(t, at, e.Time)
		assert.Equal(t, "/upload", e.Request.URL)
	})

	t.Run("TagsAreCopied", func(t *testing.T) {
		tags := map[string]string{"k": "v"}
		e := NewEntry("m", WithTags(tags))
		tags["k"] = "changed"
		assert.Equal(t, "v", e.Tags["k"])
	})

	t.Run("NilErrorIgnored", func(t *testing.T) {
		e := NewEntry("m", WithError(nil))
		assert.Nil(t, e.Err)
	})
}

func TestRequestContext(t *testing.T) {
	_, ok := RequestFromContext(context.Background())
	assert.False(t, ok)

	ctx := ContextWithRequest(context.Background(), RequestInfo{URL: "/a", ServerName: "srv"})
	info, ok := RequestFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "srv", info.ServerName)
	assert.False(t, info.IsZero())
}
