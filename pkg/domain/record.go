package domain

import (
	"fmt"
	"time"
)

// Record is a classified post kept in the collection
type Record struct {
	ID     int64  `json:"id"`
	Num    int64  `json:"num"`
	Text   string `json:"text"`
	Parent int64  `json:"parent"`
	Rating int    `json:"rating"`
}

// NewRecord makes a record from a post with already normalized text.
// Thread roots have zero parent, they reference themselves.
func NewRecord(p Post, text string) Record {
	parent := int64(p.Parent)
	if parent == 0 {
		parent = int64(p.Num)
	}
	return Record{Num: int64(p.Num), Text: text, Parent: parent}
}

// ContentType selects what kind of content a stream delivers
type ContentType string

// supported content types, all of them are served from the butthurt collection for now
const (
	ContentButthurt ContentType = "butthurt"
	ContentYLYL     ContentType = "ylyl"
	ContentChat     ContentType = "chat"
)

// ContentTypes lists all content types accepted by stream commands
var ContentTypes = []ContentType{ContentButthurt, ContentYLYL, ContentChat}

// ParseContentType converts a command name to ContentType
func ParseContentType(s string) (ContentType, error) {
	for _, ct := range ContentTypes {
		if string(ct) == s {
			return ct, nil
		}
	}
	return "", fmt.Errorf("unknown content type %q", s)
}

// StreamJob describes a scheduled delivery to a chat. Zero Interval means one-shot.
type StreamJob struct {
	ContentType ContentType
	Interval    time.Duration
	ChatID      int64
}

// Repeating reports whether the job fires more than once
func (j StreamJob) Repeating() bool {
	return j.Interval > 0
}
