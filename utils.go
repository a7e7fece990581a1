package main

import (
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
)

// maxPlaylistSize bounds how much of a playlist body is buffered. Real
// manifests are a few kilobytes; anything near this limit is not one.
const maxPlaylistSize = 10 << 20 // 10MB

// parseHeaderHints decodes the h query parameter: base64-encoded JSON of
// header overrides. Anything malformed degrades to no hints.
func parseHeaderHints(raw string) map[string]string {
	hints := make(map[string]string)
	if raw == "" {
		return hints
	}

	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		decoded, err = base64.URLEncoding.DecodeString(raw)
		if err != nil {
			return hints
		}
	}

	if err := json.Unmarshal(decoded, &hints); err != nil {
		return make(map[string]string)
	}
	return hints
}

// hintValue looks up a hint by case-insensitive header name.
func hintValue(hints map[string]string, name string) string {
	for k, v := range hints {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// withoutHint returns a copy of hints with the named header removed.
func withoutHint(hints map[string]string, name string) map[string]string {
	stripped := make(map[string]string, len(hints))
	for k, v := range hints {
		if strings.EqualFold(k, name) {
			continue
		}
		stripped[k] = v
	}
	return stripped
}

// readResponseBody reads and decompresses a response body if needed
func readResponseBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body

	// Check if response is gzip-compressed
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Encoding")), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}

	return io.ReadAll(io.LimitReader(reader, maxPlaylistSize))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
