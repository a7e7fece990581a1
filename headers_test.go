package main

import (
	"net/url"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestResolve(t *testing.T) {
	table := defaultRefererTable()

	Convey("Resolve", t, func() {
		Convey("Should match the megacloud cluster", func() {
			So(table.Resolve("foo.megacloud.example", ""), ShouldEqual, "https://megacloud.blog/")
			So(table.Resolve("eb.rapid-cloud.co", ""), ShouldEqual, "https://megacloud.blog/")
			So(table.Resolve("RABBITSTREAM.net", ""), ShouldEqual, "https://megacloud.blog/")
		})
		Convey("Should match the megaplay cluster", func() {
			So(table.Resolve("cdn.megaplay.buzz", ""), ShouldEqual, "https://megaplay.buzz/")
			So(table.Resolve("s1.vidwish.live", ""), ShouldEqual, "https://megaplay.buzz/")
		})
		Convey("Should fall back to the default", func() {
			So(table.Resolve("random.example", ""), ShouldEqual, defaultReferer)
		})
		Convey("Should let an explicit hint win", func() {
			So(table.Resolve("foo.megacloud.example", "https://custom.example/"), ShouldEqual, "https://custom.example/")
		})
		Convey("Should honor rule order on an injected table", func() {
			custom := RefererTable{
				{Fragments: []string{"cdn"}, Referer: "https://first.example/"},
				{Fragments: []string{"cdn", "edge"}, Referer: "https://second.example/"},
			}
			So(custom.Resolve("cdn.edge.example", ""), ShouldEqual, "https://first.example/")
			So(custom.Resolve("edge.example", ""), ShouldEqual, "https://second.example/")
		})
	})
}

func TestFallbackReferers(t *testing.T) {
	Convey("fallbackReferers", t, func() {
		target, err := url.Parse("https://example-cdn.test/show/master.m3u8")
		So(err, ShouldBeNil)

		refs := fallbackReferers(target)

		Convey("Should terminate in the target's own origin", func() {
			So(refs[len(refs)-1], ShouldEqual, "https://example-cdn.test/")
		})
		Convey("Should keep the fixed order", func() {
			So(refs[0], ShouldEqual, "https://megacloud.blog/")
			So(refs[1], ShouldEqual, "https://megaplay.buzz/")
		})
	})
}

func TestBrowserHeaders(t *testing.T) {
	Convey("browserHeaders", t, func() {
		Convey("Should build the browser-plausible set", func() {
			h := browserHeaders("https://megacloud.blog/", nil)
			So(h.Get("User-Agent"), ShouldEqual, browserUserAgent)
			So(h.Get("Accept"), ShouldEqual, "*/*")
			So(h.Get("Accept-Language"), ShouldNotBeEmpty)
			So(h.Get("Accept-Encoding"), ShouldEqual, "identity")
			So(h.Get("Cache-Control"), ShouldEqual, "no-cache")
			So(h.Get("Pragma"), ShouldEqual, "no-cache")
			So(h.Get("Referer"), ShouldEqual, "https://megacloud.blog/")
		})
		Convey("Should omit fetch-metadata and Origin", func() {
			h := browserHeaders("https://megacloud.blog/", nil)
			So(h.Get("Origin"), ShouldBeEmpty)
			So(h.Get("Sec-Fetch-Mode"), ShouldBeEmpty)
			So(h.Get("Sec-Fetch-Site"), ShouldBeEmpty)
		})
		Convey("Should merge client hints but keep the attempt's referer", func() {
			h := browserHeaders("https://megaplay.buzz/", map[string]string{
				"X-Custom": "1",
				"Referer":  "https://stale.example/",
			})
			So(h.Get("X-Custom"), ShouldEqual, "1")
			So(h.Get("Referer"), ShouldEqual, "https://megaplay.buzz/")
		})
		Convey("Should skip empty hint values", func() {
			h := browserHeaders("https://megaplay.buzz/", map[string]string{"X-Empty": ""})
			_, present := h["X-Empty"]
			So(present, ShouldBeFalse)
		})
	})
}
