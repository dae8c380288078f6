package content

import (
	"strings"
	"unicode"

	"github.com/dirtypig/pig/pkg/domain"
)

// Marker must be present in a comment for it to qualify
const Marker = "@"

// IsButthurt reports whether text has more uppercase than lowercase letters and contains the marker
func IsButthurt(text string) bool {
	if !strings.Contains(text, Marker) {
		return false
	}
	var upper, lower int
	for _, r := range text {
		switch {
		case unicode.IsUpper(r):
			upper++
		case unicode.IsLower(r):
			lower++
		}
	}
	return upper > lower
}

// Classifier picks notable posts from a thread
type Classifier struct {
	normalizer *Normalizer
}

// NewClassifier makes a classifier checking strictly normalized comments
func NewClassifier(n *Normalizer) *Classifier {
	return &Classifier{normalizer: n}
}

// Classify returns posts qualifying as butthurt, in input order. No matches is an empty result.
func (c *Classifier) Classify(posts []domain.Post) []domain.Post {
	res := []domain.Post{}
	for _, p := range posts {
		if IsButthurt(c.normalizer.Normalize(p.Comment, ModeStrict)) {
			res = append(res, p)
		}
	}
	return res
}
