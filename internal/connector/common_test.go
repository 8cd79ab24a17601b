package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatUnix(t *testing.T) {
	assert.Equal(t, "1970-01-01T00:00:00Z", formatUnix(0))
	assert.Equal(t, "2021-01-01T00:00:00Z", formatUnix(1609459200))
}

func TestDecodeBase64Blob(t *testing.T) {
	got, err := decodeBase64Blob("aGVs\nbG8g\nd29y\nbGQ=")
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
}

func TestDecodeBase64BlobInvalid(t *testing.T) {
	_, err := decodeBase64Blob("not-valid-base64!!!")
	assert.Error(t, err)
}
