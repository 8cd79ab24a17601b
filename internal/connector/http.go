// Package connector implements the per-source Connector contract of
// spec.md §4.5: Jira, Slack, Gmail, Drive, Confluence, Calendar, and
// GitHub, each translating its backend's pagination idioms into the
// uniform cursor/syncToken/hasMore shape the indexing engine expects.
package connector

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// httpTimeout is the per-connector HTTP default of spec.md §5.
const httpTimeout = 30 * time.Second

// newHTTPClient builds the plain net/http client used by the REST-backed
// connectors authenticated by header (Jira, Slack, Confluence); Gmail,
// Drive and Calendar use the OAuth client from newGoogleClient instead.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// Status implements errors.StatusCoder so callers outside this package
// can classify a wrapped connector failure without depending on the
// unexported apiError type.
func (e *apiError) Status() int { return e.StatusCode }

// isStaleTokenError reports whether err reflects the 400/404/410 class
// spec.md §4.5 says indicates a rejected sync/page token.
func isStaleTokenError(err error) bool {
	ae, ok := err.(*apiError)
	if !ok {
		return false
	}
	return ae.StatusCode == 400 || ae.StatusCode == 404 || ae.StatusCode == 410
}

func doJSON(ctx context.Context, client *http.Client, method, url string, headers map[string]string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return &apiError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

func basicAuthHeader(username, token string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+token))
}
