package connector

import (
	"encoding/base64"
	"strings"
	"time"
)

// formatUnix renders a unix-seconds timestamp as RFC3339 UTC, the
// canonical createdAt/updatedAt format stored on types.Document.
func formatUnix(seconds int64) string {
	return time.Unix(seconds, 0).UTC().Format(time.RFC3339)
}

// decodeBase64Blob decodes a GitHub blob's base64 content, which the API
// line-wraps at 60 characters.
func decodeBase64Blob(content string) (string, error) {
	cleaned := strings.ReplaceAll(content, "\n", "")
	data, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
