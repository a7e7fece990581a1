package main

import (
	"net/http"
	"net/url"
	"strings"
)

// defaultReferer is used when no table entry matches the target hostname.
const defaultReferer = "https://hianime.to/"

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// RefererRule maps a group of CDN hostname fragments to the referer that
// cluster of hosts expects.
type RefererRule struct {
	Fragments []string
	Referer   string
}

// RefererTable is an ordered rule list; the first matching rule wins.
type RefererTable []RefererRule

func defaultRefererTable() RefererTable {
	return RefererTable{
		{
			Fragments: []string{"megacloud", "rapid-cloud", "rabbitstream"},
			Referer:   "https://megacloud.blog/",
		},
		{
			Fragments: []string{"megaplay", "vidwish"},
			Referer:   "https://megaplay.buzz/",
		},
	}
}

// Resolve returns the best-guess referer for a hostname. An explicit client
// hint always wins; otherwise the first rule containing a matching fragment,
// falling back to the global default. Never fails.
func (t RefererTable) Resolve(hostname, explicitHint string) string {
	if explicitHint != "" {
		return explicitHint
	}
	hostname = strings.ToLower(hostname)
	for _, rule := range t {
		for _, fragment := range rule.Fragments {
			if strings.Contains(hostname, fragment) {
				return rule.Referer
			}
		}
	}
	return defaultReferer
}

// fallbackReferers is the fixed candidate order tried when the initial guess
// is rejected, terminating in the target's own origin.
func fallbackReferers(target *url.URL) []string {
	return []string{
		"https://megacloud.blog/",
		"https://megaplay.buzz/",
		"https://hianime.to/",
		"https://aniwatchtv.to/",
		target.Scheme + "://" + target.Host + "/",
	}
}

// browserHeaders builds the header set for one upstream attempt. Sec-Fetch-*
// and a synthetic Origin are deliberately absent: a server cannot reproduce
// a browser's inclusion rules for them, and getting them wrong flags the
// request as automated. Client hints override the defaults, but the referer
// chosen for this attempt always takes the Referer slot.
func browserHeaders(referer string, hints map[string]string) http.Header {
	h := make(http.Header)
	h.Set("User-Agent", browserUserAgent)
	h.Set("Accept", "*/*")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Accept-Encoding", "identity")
	h.Set("Cache-Control", "no-cache")
	h.Set("Pragma", "no-cache")
	for k, v := range hints {
		if v != "" {
			h.Set(k, v)
		}
	}
	h.Set("Referer", referer)
	return h
}
