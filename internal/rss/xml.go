package rss

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// cursorNamespace is private to this system. Strict RSS parsers
	// ignore it; our own clients select cursor elements through it.
	cursorNamespace = "https://blocknews.dev/ns/rss"
	atomNamespace   = "http://www.w3.org/2005/Atom"

	feedLanguage   = "zh-CN"
	feedTTLMinutes = 60
)

// Render serializes the feed as a complete RSS 2.0 document. Every tag
// is written with an explicit closing tag so the output survives the
// loosest feed parsers.
func Render(feed Feed) string {
	var b strings.Builder

	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString("\n")
	b.WriteString(`<rss version="2.0" xmlns:atom="` + atomNamespace + `" xmlns:bn="` + cursorNamespace + `">`)
	b.WriteString("\n<channel>\n")

	writeCDATA(&b, "title", feed.Title)
	writeElement(&b, "link", feed.Link)
	writeCDATA(&b, "description", feed.Description)
	writeElement(&b, "language", feedLanguage)
	writeElement(&b, "lastBuildDate", httpDate(feed.BuildTime))
	writeElement(&b, "ttl", strconv.Itoa(feedTTLMinutes))
	if feed.SelfLink != "" {
		b.WriteString(`<atom:link href="` + escapeAttr(feed.SelfLink) + `" rel="self" type="application/rss+xml"></atom:link>`)
		b.WriteString("\n")
	}

	for _, item := range feed.Items {
		b.WriteString("<item>\n")
		writeCDATA(&b, "title", item.Title)
		writeElement(&b, "link", item.Link)
		writeCDATA(&b, "description", item.Description)
		writeElement(&b, "pubDate", httpDate(item.PubDate))
		writeElement(&b, "guid", item.GUID)
		if item.Source != "" {
			writeCDATA(&b, "source", item.Source)
		}
		if item.CursorID != nil {
			writeElement(&b, "bn:id", strconv.FormatInt(*item.CursorID, 10))
		}
		if item.CursorCreatedAt != nil {
			writeElement(&b, "bn:createdAt", item.CursorCreatedAt.UTC().Format(time.RFC3339Nano))
		}
		b.WriteString("</item>\n")
	}

	b.WriteString("</channel>\n</rss>")

	return b.String()
}

func writeElement(b *strings.Builder, tag, value string) {
	b.WriteString("<" + tag + ">")
	b.WriteString(escapeText(value))
	b.WriteString("</" + tag + ">\n")
}

func writeCDATA(b *strings.Builder, tag, value string) {
	b.WriteString("<" + tag + "><![CDATA[")
	// A literal "]]>" inside the payload would close the section early.
	b.WriteString(strings.ReplaceAll(value, "]]>", "]]]]><![CDATA[>"))
	b.WriteString("]]></" + tag + ">\n")
}

func escapeText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

func escapeAttr(s string) string {
	return strings.ReplaceAll(escapeText(s), `"`, "&quot;")
}

func httpDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}
