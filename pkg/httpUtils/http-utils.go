package http_utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 10 << 20 // 10MB

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// DoJSON sends body (if non-nil) as JSON and reads the response. Transport
// failures are returned as errors; HTTP status codes are left to the caller.
func DoJSON(ctx context.Context, client *http.Client, method, url string, headers map[string]string, body any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %v", url, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// Snippet returns a short, single-line prefix of body for error messages.
func Snippet(body []byte) string {
	const limit = 200
	text := string(bytes.TrimSpace(body))
	if len(text) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}
	return text
}
