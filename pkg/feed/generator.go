// Package feed renders the best rated part of the collection as RSS
package feed

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dirtypig/pig/pkg/content"
	"github.com/dirtypig/pig/pkg/domain"
)

const (
	maxTitleRunes = 80
	feedTTL       = 60 // minutes
)

// Generator creates RSS feeds from collection records
type Generator struct {
	siteURL    string
	board      string
	boardURL   string
	normalizer *content.Normalizer
}

// NewGenerator creates a new feed generator. siteURL is where the feed itself is served,
// boardURL is the board site records link to.
func NewGenerator(siteURL, board, boardURL string, normalizer *content.Normalizer) *Generator {
	return &Generator{
		siteURL:    strings.TrimRight(siteURL, "/"),
		board:      board,
		boardURL:   strings.TrimRight(boardURL, "/"),
		normalizer: normalizer,
	}
}

// GenerateRSS creates an RSS 2.0 feed from records rated at least minRating.
// builtAt is the collection build time, items are dated by it. Zero builtAt leaves items undated.
func (g *Generator) GenerateRSS(records []domain.Record, minRating int, builtAt time.Time) (string, error) {
	pubDate, lastBuild := "", time.Now().Format(time.RFC1123Z)
	if !builtAt.IsZero() {
		pubDate = builtAt.Format(time.RFC1123Z)
		lastBuild = pubDate
	}

	items := make([]*Item, 0, len(records))
	for _, rec := range records {
		item := g.convertToItem(rec)
		item.PubDate = pubDate
		items = append(items, item)
	}

	feed := &RSS{
		Version: "2.0",
		Atom:    "http://www.w3.org/2005/Atom",
		Channel: &Channel{
			Title:         fmt.Sprintf("Dirty Pig - /%s/ (rating ≥ %+d)", g.board, minRating),
			Link:          fmt.Sprintf("%s/%s/", g.boardURL, g.board),
			Description:   fmt.Sprintf("Best rated butthurts of /%s/", g.board),
			Language:      "ru",
			TTL:           feedTTL,
			AtomLink:      &AtomLink{Href: g.siteURL + "/rss", Rel: "self", Type: "application/rss+xml"},
			LastBuildDate: lastBuild,
			Items:         items,
		},
	}

	output, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal RSS: %w", err)
	}

	return xml.Header + string(output), nil
}

// convertToItem converts a record to an RSS item, title is the plain text head of the record
func (g *Generator) convertToItem(rec domain.Record) *Item {
	title := []rune(g.normalizer.Normalize(rec.Text, content.ModeStrict))
	if len(title) > maxTitleRunes {
		title = append(title[:maxTitleRunes], '…')
	}

	return &Item{
		Title:       fmt.Sprintf("[%+d] %s", rec.Rating, string(title)),
		Link:        fmt.Sprintf("%s/%s/res/%d.html#%d", g.boardURL, g.board, rec.Parent, rec.Num),
		GUID:        GUID{Value: strconv.FormatInt(rec.Num, 10)},
		Description: strings.ReplaceAll(rec.Text, "\n", "<br>"),
		Category:    Category{Value: g.board, Domain: g.boardURL},
	}
}
