// Package sitemap renders the sitemaps.org XML document for the site.
package sitemap

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const xmlns = "http://www.sitemaps.org/schemas/sitemap/0.9"

// StaticPaths are listed before any movie page.
var StaticPaths = []string{"/", "/search", "/login", "/register"}

type URL struct {
	Loc        string `xml:"loc"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

type urlSet struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	URLs    []URL    `xml:"url"`
}

// Build lists the static pages followed by one /movie/{id} page per tmdbID.
func Build(baseURL string, tmdbIDs []int64) []URL {
	base := strings.TrimRight(baseURL, "/")

	urls := make([]URL, 0, len(StaticPaths)+len(tmdbIDs))
	for _, p := range StaticPaths {
		urls = append(urls, URL{Loc: base + p, ChangeFreq: "daily", Priority: "0.8"})
	}
	for _, id := range tmdbIDs {
		urls = append(urls, URL{
			Loc:        fmt.Sprintf("%s/movie/%d", base, id),
			ChangeFreq: "weekly",
			Priority:   "0.6",
		})
	}
	return urls
}

// Write encodes urls as an indented sitemap document.
func Write(w io.Writer, urls []URL) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(urlSet{Xmlns: xmlns, URLs: urls}); err != nil {
		return fmt.Errorf("sitemap: encoding: %w", err)
	}
	return enc.Close()
}
