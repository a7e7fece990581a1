package main

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestClassifyKind(t *testing.T) {
	Convey("classifyKind", t, func() {
		Convey("Should tag playlists by extension", func() {
			So(classifyKind("/show/master.m3u8", ""), ShouldEqual, kindPlaylist)
		})
		Convey("Should tag playlists by content type on extensionless paths", func() {
			So(classifyKind("/playback/1080", "application/vnd.apple.mpegurl"), ShouldEqual, kindPlaylist)
			So(classifyKind("/playback/1080", "audio/mpegurl"), ShouldEqual, kindPlaylist)
		})
		Convey("Should tag segments, keys and thumbnails", func() {
			So(classifyKind("/seg/000.ts", "video/mp2t"), ShouldEqual, kindSegment)
			So(classifyKind("/seg/init.m4s", ""), ShouldEqual, kindSegment)
			So(classifyKind("/enc.key", ""), ShouldEqual, kindSegment)
			So(classifyKind("/thumb/sprite.jpg", ""), ShouldEqual, kindSegment)
		})
		Convey("Should tag the historical .html segment trick", func() {
			So(classifyKind("/seg/000.html", "video/mp2t"), ShouldEqual, kindSegment)
		})
		Convey("Should tag everything else unknown", func() {
			So(classifyKind("/api/data", "application/octet-stream"), ShouldEqual, kindUnknown)
		})
	})
}

func TestClassify(t *testing.T) {
	Convey("classify", t, func() {
		Convey("Should reject non-success statuses", func() {
			c := classify(403, "video/mp2t", "", "/seg/000.ts")
			So(c.ok, ShouldBeFalse)
		})
		Convey("Should flag a markup body behind a segment path as a disguised error", func() {
			c := classify(200, "text/html; charset=utf-8", "", "/seg/000.ts")
			So(c.ok, ShouldBeTrue)
			So(c.isDisguisedError, ShouldBeTrue)
		})
		Convey("Should not flag genuine .html paths", func() {
			c := classify(200, "text/html", "", "/seg/000.html")
			So(c.isDisguisedError, ShouldBeFalse)
		})
		Convey("Should require the #EXTM3U marker on playlists", func() {
			ok := classify(200, "application/vnd.apple.mpegurl", "#EXTM3U\n#EXT-X-VERSION:3\n", "/master.m3u8")
			So(ok.ok, ShouldBeTrue)

			bogus := classify(200, "application/vnd.apple.mpegurl", "<html>not found</html>", "/master.m3u8")
			So(bogus.ok, ShouldBeFalse)
		})
		Convey("Should tolerate leading whitespace before the marker", func() {
			c := classify(200, "application/vnd.apple.mpegurl", "\n#EXTM3U\n", "/master.m3u8")
			So(c.ok, ShouldBeTrue)
		})
		Convey("Should accept partial content for segments", func() {
			c := classify(206, "video/mp2t", "", "/seg/000.ts")
			So(c.ok, ShouldBeTrue)
			So(c.kind, ShouldEqual, kindSegment)
		})
	})
}

func TestDetectContentType(t *testing.T) {
	Convey("detectContentType", t, func() {
		So(detectContentType("/seg/000.ts"), ShouldEqual, "video/mp2t")
		So(detectContentType("/master.m3u8"), ShouldEqual, "application/vnd.apple.mpegurl")
		So(detectContentType("/enc.key"), ShouldEqual, "application/octet-stream")
		So(detectContentType("/unknown.bin"), ShouldEqual, "application/octet-stream")
	})
}
