package feed

import (
	"encoding/xml"
)

// RSS is the rss 2.0 document root
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Atom    string   `xml:"xmlns:atom,attr"`
	Channel *Channel `xml:"channel"`
}

// Channel describes the board feed. LastBuildDate is the time the collection was built.
type Channel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language"`
	TTL           int       `xml:"ttl,omitempty"`
	AtomLink      *AtomLink `xml:"http://www.w3.org/2005/Atom link"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []*Item   `xml:"item"`
}

// AtomLink is the self reference of the feed
type AtomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

// Item is a single record
type Item struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	GUID        GUID     `xml:"guid"`
	Description string   `xml:"description"`
	PubDate     string   `xml:"pubDate,omitempty"`
	Category    Category `xml:"category"`
}

// GUID holds the post number, it is not a link
type GUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

// Category names the board, Domain is the board site
type Category struct {
	Value  string `xml:",chardata"`
	Domain string `xml:"domain,attr,omitempty"`
}
