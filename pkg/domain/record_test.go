package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNum_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Num
		wantErr bool
	}{
		{name: "number", input: `123`, want: 123},
		{name: "string", input: `"456"`, want: 456},
		{name: "zero string", input: `"0"`, want: 0},
		{name: "empty string", input: `""`, want: 0},
		{name: "null", input: `null`, want: 0},
		{name: "garbage string", input: `"abc"`, wantErr: true},
		{name: "object", input: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n Num
			err := json.Unmarshal([]byte(tt.input), &n)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestPost_DecodeMixedEncoding(t *testing.T) {
	var posts []Post
	err := json.Unmarshal([]byte(`[{"num":42,"parent":"0","comment":"root"},{"num":"43","parent":42,"comment":"reply"}]`), &posts)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, Post{Num: 42, Parent: 0, Comment: "root"}, posts[0])
	assert.Equal(t, Post{Num: 43, Parent: 42, Comment: "reply"}, posts[1])
}

func TestNewRecord(t *testing.T) {
	t.Run("thread root references itself", func(t *testing.T) {
		rec := NewRecord(Post{Num: 42, Parent: 0}, "TEXT @x")
		assert.Equal(t, int64(42), rec.Num)
		assert.Equal(t, int64(42), rec.Parent)
		assert.Equal(t, 0, rec.Rating)
		assert.Equal(t, "TEXT @x", rec.Text)
	})

	t.Run("reply keeps parent", func(t *testing.T) {
		rec := NewRecord(Post{Num: 43, Parent: 42}, "TEXT @x")
		assert.Equal(t, int64(43), rec.Num)
		assert.Equal(t, int64(42), rec.Parent)
	})
}

func TestParseContentType(t *testing.T) {
	for _, name := range []string{"butthurt", "ylyl", "chat"} {
		ct, err := ParseContentType(name)
		require.NoError(t, err)
		assert.Equal(t, ContentType(name), ct)
	}

	_, err := ParseContentType("memes")
	require.Error(t, err)
}

func TestStreamJob_Repeating(t *testing.T) {
	assert.False(t, StreamJob{ContentType: ContentButthurt}.Repeating())
	assert.True(t, StreamJob{ContentType: ContentButthurt, Interval: 60_000_000_000}.Repeating())
}
