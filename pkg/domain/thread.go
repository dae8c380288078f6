package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Num is a post or thread number. The board API encodes it either as a JSON number
// or as a numeric string ("0" for thread roots), both decode to the same value.
type Num int64

// UnmarshalJSON accepts 123, "123" and "" (as zero)
func (n *Num) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode num string: %w", err)
		}
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("parse num %q: %w", s, err)
		}
		*n = Num(v)
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode num: %w", err)
	}
	*n = Num(v)
	return nil
}

// Post is a single board post
type Post struct {
	Num     Num    `json:"num"`
	Parent  Num    `json:"parent"`
	Comment string `json:"comment"`
}

// ThreadMeta is a catalog entry as listed by the board's threads.json
type ThreadMeta struct {
	Num        Num     `json:"num"`
	Subject    string  `json:"subject"`
	PostsCount int     `json:"posts_count"`
	Views      int     `json:"views,omitempty"`
	Score      float64 `json:"score,omitempty"`
	Comment    string  `json:"comment"`
}

// Thread is a fetched thread with its posts, stored as a snapshot file
type Thread struct {
	Num        Num    `json:"num"`
	Board      string `json:"board"`
	Subject    string `json:"subject"`
	PostsCount int    `json:"posts_count"`
	Posts      []Post `json:"posts"`
}
