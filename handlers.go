package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var sharedClient = &http.Client{
	Transport: newTransport(),
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		if len(via) >= 5 {
			return fmt.Errorf("stopped after 5 redirects")
		}
		return nil
	},
}

// newTransport tunes the pool for many concurrent upstream fetches. There is
// no whole-request timeout: segment streams are long-lived, so only the wait
// for upstream headers is bounded.
func newTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 100
	t.MaxIdleConnsPerHost = 100
	t.MaxConnsPerHost = 200
	t.IdleConnTimeout = 30 * time.Second
	t.ResponseHeaderTimeout = 30 * time.Second
	return t
}

// fetchFunc issues one upstream attempt with one header set. Swappable so
// the negotiation policy can be exercised without network calls.
type fetchFunc func(ctx context.Context, target *url.URL, headers http.Header) (*http.Response, error)

// relay orchestrates referer negotiation, playlist rewriting and response
// emission for the /stream endpoint. Stateless across requests: every
// request negotiates from scratch.
type relay struct {
	table       RefererTable
	relayOrigin string
	fetch       fetchFunc
}

func newRelay(relayOrigin string, table RefererTable) *relay {
	return &relay{
		table:       table,
		relayOrigin: relayOrigin,
		fetch:       doFetch,
	}
}

func doFetch(ctx context.Context, target *url.URL, headers http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header = headers
	return sharedClient.Do(req)
}

// attempt is one accepted upstream response. Playlist bodies are fully
// buffered; for everything else resp stays open for streaming.
type attempt struct {
	referer string
	status  int
	header  http.Header
	kind    resourceKind
	body    []byte
	resp    *http.Response
}

// upstreamError reports that every referer candidate was rejected; status is
// the last one observed.
type upstreamError struct {
	status int
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("upstream rejected all referer candidates, last status %d", e.status)
}

// candidates builds the ordered referer list for one request: the resolver's
// guess (client hint wins) followed by the fixed fallback list, each value
// tried at most once.
func (rl *relay) candidates(target *url.URL, hint string) []string {
	first := rl.table.Resolve(target.Hostname(), hint)
	return lo.Uniq(append([]string{first}, fallbackReferers(target)...))
}

// negotiate runs the sequential retry loop over referer candidates and
// returns the first accepted attempt. Candidates are tried one at a time;
// hammering the upstream with parallel guesses would invite rate limiting.
// If the client hints carried an Origin header and every candidate failed,
// one further pass retries them with the Origin stripped, since some hosts
// reject cross-origin-looking requests only when Origin is present.
func (rl *relay) negotiate(ctx context.Context, target *url.URL, hints map[string]string, rangeHeader string) (*attempt, error) {
	candidates := rl.candidates(target, hintValue(hints, "Referer"))

	passes := []map[string]string{hints}
	if hintValue(hints, "Origin") != "" {
		passes = append(passes, withoutHint(hints, "Origin"))
	}

	lastStatus := 0
	var lastErr error
	for _, passHints := range passes {
		for _, referer := range candidates {
			att, status, err := rl.tryOnce(ctx, target, referer, passHints, rangeHeader)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"path":    pathPrefix(target.Path),
					"referer": referer,
				}).Warnf("upstream attempt failed: %v", err)
				lastErr = err
				continue
			}
			if att != nil {
				return att, nil
			}
			logrus.WithFields(logrus.Fields{
				"path":    pathPrefix(target.Path),
				"referer": referer,
				"status":  status,
			}).Debug("referer candidate rejected")
			lastStatus = status
		}
	}

	if lastStatus != 0 {
		return nil, &upstreamError{status: lastStatus}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("no referer candidates for %s", target.Host)
}

// tryOnce issues a single attempt and decides acceptance. Playlist-kind
// responses are buffered and checked for the #EXTM3U marker before they
// count as working; segment-kind responses are judged on status and headers
// alone so the body is never buffered ahead of streaming. A nil attempt with
// a status means the candidate was rejected.
func (rl *relay) tryOnce(ctx context.Context, target *url.URL, referer string, hints map[string]string, rangeHeader string) (*attempt, int, error) {
	headers := browserHeaders(referer, hints)
	if rangeHeader != "" {
		headers.Set("Range", rangeHeader)
	}

	resp, err := rl.fetch(ctx, target, headers)
	if err != nil {
		return nil, 0, err
	}

	contentType := resp.Header.Get("Content-Type")
	kind := classifyKind(target.Path, contentType)

	if kind == kindPlaylist {
		body, err := readResponseBody(resp)
		resp.Body.Close()
		if err != nil {
			return nil, 0, err
		}
		c := classify(resp.StatusCode, contentType, string(body), target.Path)
		if !c.ok {
			return nil, resp.StatusCode, nil
		}
		return &attempt{
			referer: referer,
			status:  resp.StatusCode,
			header:  resp.Header,
			kind:    kindPlaylist,
			body:    body,
		}, resp.StatusCode, nil
	}

	c := classify(resp.StatusCode, contentType, "", target.Path)
	if !c.ok || c.isDisguisedError {
		drainAndClose(resp)
		return nil, resp.StatusCode, nil
	}
	return &attempt{
		referer: referer,
		status:  resp.StatusCode,
		header:  resp.Header,
		kind:    kind,
		resp:    resp,
	}, resp.StatusCode, nil
}

// passthroughHeaders is the allow-list copied from the accepted upstream
// response onto segment responses.
var passthroughHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Content-Range",
	"Accept-Ranges",
}

// streamHandler is the relay entry point: GET /stream?url=...&h=...
func (rl *relay) streamHandler(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		sendError(w, http.StatusBadRequest, "Missing url parameter", nil)
		return
	}
	target, err := url.Parse(raw)
	if err != nil || target.Scheme == "" || target.Host == "" {
		sendError(w, http.StatusBadRequest, "Invalid url parameter", nil)
		return
	}

	hints := parseHeaderHints(r.URL.Query().Get("h"))

	att, err := rl.negotiate(r.Context(), target, hints, r.Header.Get("Range"))
	if err != nil {
		var rejected *upstreamError
		if errors.As(err, &rejected) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(rejected.status)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"error":  "Upstream rejected all attempts",
				"status": rejected.status,
			})
			return
		}
		sendError(w, http.StatusInternalServerError, "Failed to fetch upstream resource", err.Error())
		return
	}

	if att.kind == kindPlaylist {
		rc := rewriteContext{base: target, relayOrigin: rl.relayOrigin, referer: att.referer}
		rewritten := rewritePlaylist(string(att.body), rc)
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.Header().Set("Cache-Control", "no-cache")
		if r.Method != http.MethodHead {
			_, _ = w.Write([]byte(rewritten))
		}
		return
	}

	defer att.resp.Body.Close()

	for _, name := range passthroughHeaders {
		if v := att.header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", detectContentType(target.Path))
	}
	// Ensure downstream players know seeking is available.
	if w.Header().Get("Accept-Ranges") == "" {
		w.Header().Set("Accept-Ranges", "bytes")
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(att.status)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, att.resp.Body); err != nil {
		logrus.Debugf("segment stream interrupted: %v", err)
	}
}

// sendError sends a JSON error response
func sendError(w http.ResponseWriter, status int, message string, details interface{}) {
	if details != nil {
		logrus.Warnf("%s: %v", message, details)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	payload := map[string]interface{}{"error": message}
	if details != nil {
		payload["details"] = details
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

// pathPrefix truncates a path for logging.
func pathPrefix(p string) string {
	if len(p) > 48 {
		return p[:48]
	}
	return p
}
