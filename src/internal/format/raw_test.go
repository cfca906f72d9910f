package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawFormatter_Format(t *testing.T) {
	logger := newTestLogger()
	formatter, err := NewRawFormatter(nil, logger)
	require.NoError(t, err)

	output, err := formatter.Format(testEntry())
	require.NoError(t, err)
	assert.Equal(t, "rate limit exceeded\n", string(output))
}
