// Package sitemap renders the site's sitemap.xml from its fixed page list.
package sitemap

import (
	"encoding/xml"
	"net/http"
	"strings"
	"time"
)

// sitemapNamespace is the sitemaps.org protocol namespace.
const sitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// page is one marketing page with its crawl hints.
type page struct {
	Path       string
	ChangeFreq string
	Priority   string
}

// pages is the site's canonical page list. Video and API routes are
// deliberately absent: crawlers have no business hitting the gateway.
var pages = []page{
	{Path: "/", ChangeFreq: "weekly", Priority: "1.0"},
	{Path: "/about", ChangeFreq: "monthly", Priority: "0.7"},
	{Path: "/services", ChangeFreq: "monthly", Priority: "0.9"},
	{Path: "/pricing", ChangeFreq: "monthly", Priority: "0.8"},
	{Path: "/portfolio", ChangeFreq: "weekly", Priority: "0.9"},
	{Path: "/contact", ChangeFreq: "yearly", Priority: "0.6"},
	{Path: "/privacy", ChangeFreq: "yearly", Priority: "0.3"},
	{Path: "/terms", ChangeFreq: "yearly", Priority: "0.3"},
}

// urlSet is the sitemap XML document root.
type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	Xmlns   string     `xml:"xmlns,attr"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

// Render produces the sitemap XML for the given base URL.
func Render(baseURL string, now time.Time) ([]byte, error) {
	base := strings.TrimSuffix(baseURL, "/")
	set := urlSet{Xmlns: sitemapNamespace}
	lastMod := now.UTC().Format("2006-01-02")
	for _, p := range pages {
		set.URLs = append(set.URLs, urlEntry{
			Loc:        base + p.Path,
			LastMod:    lastMod,
			ChangeFreq: p.ChangeFreq,
			Priority:   p.Priority,
		})
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// Handler serves GET /sitemap.xml for the given base URL.
func Handler(baseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := Render(baseURL, time.Now())
		if err != nil {
			http.Error(w, "sitemap unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Write(body)
	}
}
