package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var uriAttrPattern = regexp.MustCompile(`URI="([^"]+)"`)

// rewriteContext carries everything needed to rewrite one playlist body.
// base is the URL the playlist was fetched from, referer the credential
// that the upstream finally accepted.
type rewriteContext struct {
	base        *url.URL
	relayOrigin string
	referer     string
}

// encodeHints serializes the winning referer the way /stream expects it in
// the h parameter: base64-encoded JSON of header overrides.
func encodeHints(referer string) string {
	payload, _ := json.Marshal(map[string]string{"Referer": referer})
	return base64.StdEncoding.EncodeToString(payload)
}

// wrapURL turns an absolute upstream URL into a relay-relative one carrying
// the target and the winning referer as query parameters.
func (rc rewriteContext) wrapURL(absolute string) string {
	return fmt.Sprintf("%s/stream?url=%s&h=%s",
		rc.relayOrigin,
		url.QueryEscape(absolute),
		url.QueryEscape(encodeHints(rc.referer)))
}

// resolveReference resolves a playlist reference against the playlist's own
// location: absolute references pass through, rooted paths resolve against
// the target origin, everything else against the playlist directory.
func (rc rewriteContext) resolveReference(ref string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", false
	}
	return rc.base.ResolveReference(parsed).String(), true
}

// rewritePlaylist routes every reference embedded in an HLS manifest back
// through the relay. Two passes: URI="..." attributes first (encryption keys,
// init maps, media renditions), then bare reference lines. Tag and comment
// lines are otherwise preserved byte for byte, and a reference that fails to
// parse is passed through rather than dropped so one malformed entry does
// not corrupt the rest of the playlist.
func rewritePlaylist(text string, rc rewriteContext) string {
	text = uriAttrPattern.ReplaceAllStringFunc(text, func(match string) string {
		sub := uriAttrPattern.FindStringSubmatch(match)
		resolved, ok := rc.resolveReference(sub[1])
		if !ok {
			return match
		}
		return `URI="` + rc.wrapURL(resolved) + `"`
	})

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		resolved, ok := rc.resolveReference(trimmed)
		if !ok {
			continue
		}
		lines[i] = rc.wrapURL(resolved)
	}
	return strings.Join(lines, "\n")
}
