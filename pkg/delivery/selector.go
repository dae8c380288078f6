// Package delivery picks collection records and renders them as chat cards with rating controls
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dirtypig/pig/pkg/domain"
	"github.com/dirtypig/pig/pkg/repository"
)

// ErrNoContent returned when there is nothing to deliver
var ErrNoContent = errors.New("no content available")

// Store gives access to the collection
type Store interface {
	Random(ctx context.Context) (*domain.Record, error)
	Get(ctx context.Context, num int64) (*domain.Record, error)
	AdjustRating(ctx context.Context, num int64, delta int) (int, error)
}

// Button is an inline control, Data comes back in the callback when pressed
type Button struct {
	Text string
	Data string
}

// Card is a rendered record ready to be sent
type Card struct {
	Num      int64
	Text     string
	Keyboard []Button
}

// Selector renders random records of the collection
type Selector struct {
	store   Store
	board   string
	baseURL string
}

// NewSelector makes a selector linking records to threads of board at baseURL
func NewSelector(store Store, board, baseURL string) *Selector {
	return &Selector{store: store, board: board, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Random picks one record uniformly at random
func (s *Selector) Random(ctx context.Context) (Card, error) {
	rec, err := s.store.Random(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return Card{}, ErrNoContent
	}
	if err != nil {
		return Card{}, fmt.Errorf("pick record: %w", err)
	}
	return s.Render(*rec), nil
}

// ForContent picks a record for a stream of the given content type.
// Every content type is served from the same collection for now.
func (s *Selector) ForContent(ctx context.Context, ct domain.ContentType) (Card, error) {
	switch ct {
	case domain.ContentButthurt, domain.ContentYLYL, domain.ContentChat:
		return s.Random(ctx)
	default:
		return Card{}, fmt.Errorf("unsupported content type %q", ct)
	}
}

// Vote applies delta to the record rating and returns controls showing the new value.
// Zero delta changes nothing and returns the current controls.
func (s *Selector) Vote(ctx context.Context, num int64, delta int) ([]Button, error) {
	if delta == 0 {
		rec, err := s.store.Get(ctx, num)
		if err != nil {
			return nil, fmt.Errorf("get record: %w", err)
		}
		return Keyboard(num, rec.Rating), nil
	}

	rating, err := s.store.AdjustRating(ctx, num, delta)
	if err != nil {
		return nil, fmt.Errorf("vote: %w", err)
	}
	return Keyboard(num, rating), nil
}

// Render makes a card with the record text, a link to its thread and rating controls
func (s *Selector) Render(rec domain.Record) Card {
	text := fmt.Sprintf("%s\n%s/<a href='%s/%s/res/%d.html#%d'>%d</a>",
		rec.Text, s.board, s.baseURL, s.board, rec.Parent, rec.Num, rec.Parent)
	return Card{Num: rec.Num, Text: text, Keyboard: Keyboard(rec.Num, rec.Rating)}
}

// Keyboard returns down-vote, rating and up-vote buttons. The rating button is a no-op vote.
func Keyboard(num int64, rating int) []Button {
	return []Button{
		{Text: "👎", Data: VoteData(num, -1)},
		{Text: fmt.Sprintf("%+d", rating), Data: VoteData(num, 0)},
		{Text: "👍", Data: VoteData(num, 1)},
	}
}

// VoteData encodes a vote as callback data, "7+-1" for a down-vote of record 7
func VoteData(num int64, delta int) string {
	return fmt.Sprintf("%d+%d", num, delta)
}

// ParseVote decodes callback data made by VoteData
func ParseVote(data string) (num int64, delta int, err error) {
	numStr, deltaStr, ok := strings.Cut(data, "+")
	if !ok {
		return 0, 0, fmt.Errorf("invalid vote %q", data)
	}
	if num, err = strconv.ParseInt(numStr, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("invalid vote record %q: %w", numStr, err)
	}
	if delta, err = strconv.Atoi(deltaStr); err != nil {
		return 0, 0, fmt.Errorf("invalid vote value %q: %w", deltaStr, err)
	}
	if delta < -1 || delta > 1 {
		return 0, 0, fmt.Errorf("vote value %d out of range", delta)
	}
	return num, delta, nil
}
