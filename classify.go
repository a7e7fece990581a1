package main

import (
	"path"
	"strings"
)

// resourceKind tags what the upstream resource is, driving whether the
// response is rewritten (playlists) or streamed through (everything else).
type resourceKind int

const (
	kindUnknown resourceKind = iota
	kindPlaylist
	kindSegment
)

// playlistMarker is the mandatory first tag of an HLS manifest.
const playlistMarker = "#EXTM3U"

// segmentExtensions covers media segments, encryption keys, thumbnails and
// the .html suffix a few CDNs use to disguise segment files.
var segmentExtensions = map[string]bool{
	".ts":   true,
	".m4s":  true,
	".mp4":  true,
	".m4a":  true,
	".aac":  true,
	".key":  true,
	".vtt":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
	".ico":  true,
	".html": true,
}

// contentTypes backfills a Content-Type when the upstream omits one.
var contentTypes = map[string]string{
	".m3u8": "application/vnd.apple.mpegurl",
	".ts":   "video/mp2t",
	".m4s":  "video/iso.segment",
	".mp4":  "video/mp4",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".vtt":  "text/vtt",
	".key":  "application/octet-stream",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// classifyKind derives the resource kind from the target path extension and
// the upstream content type. The content type decides for playlists because
// many hosts serve manifests from extensionless URLs.
func classifyKind(urlPath, contentType string) resourceKind {
	ext := strings.ToLower(path.Ext(urlPath))
	if ext == ".m3u8" || strings.Contains(strings.ToLower(contentType), "mpegurl") {
		return kindPlaylist
	}
	if segmentExtensions[ext] {
		return kindSegment
	}
	return kindUnknown
}

// classification is the verdict on one upstream attempt.
type classification struct {
	ok               bool
	kind             resourceKind
	isDisguisedError bool
}

// classify decides whether one upstream response is acceptable. A segment
// answered with markup is a disguised error page even on status 200; a
// playlist must open with the #EXTM3U marker. Paths that genuinely end in
// .html are exempt from the disguise check since markup is what they are.
func classify(status int, contentType, bodyPrefix, urlPath string) classification {
	c := classification{
		ok:   status >= 200 && status < 300,
		kind: classifyKind(urlPath, contentType),
	}

	if c.kind == kindSegment &&
		strings.Contains(strings.ToLower(contentType), "text/html") &&
		!strings.HasSuffix(strings.ToLower(urlPath), ".html") {
		c.isDisguisedError = true
	}

	if c.kind == kindPlaylist && c.ok {
		if !strings.HasPrefix(strings.TrimSpace(bodyPrefix), playlistMarker) {
			c.ok = false
		}
	}

	return c
}

// detectContentType picks a Content-Type from the path extension when the
// upstream response carried none.
func detectContentType(urlPath string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(urlPath))]; ok {
		return ct
	}
	return "application/octet-stream"
}
