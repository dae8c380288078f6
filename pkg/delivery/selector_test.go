package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirtypig/pig/pkg/domain"
	"github.com/dirtypig/pig/pkg/repository"
)

func setupSelector(t *testing.T, records ...domain.Record) (*Selector, *repository.Repositories) {
	t.Helper()
	repos, err := repository.NewRepositories(context.Background(), repository.Config{
		DSN: ":memory:", MaxOpenConns: 1, MaxIdleConns: 1, ConnMaxLifetime: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })

	if len(records) > 0 {
		_, err = repos.Record.ReplaceCollection(context.Background(), records, 1)
		require.NoError(t, err)
	}
	return NewSelector(repos.Record, "b", "https://2ch.hk/"), repos
}

func TestSelector_RandomEmpty(t *testing.T) {
	s, _ := setupSelector(t)
	card, err := s.Random(context.Background())
	require.ErrorIs(t, err, ErrNoContent)
	assert.Empty(t, card.Keyboard, "no vote controls for empty collection")
}

func TestSelector_Random(t *testing.T) {
	s, _ := setupSelector(t, domain.Record{Num: 101, Text: "HI @everyone", Parent: 100, Rating: 0})

	card, err := s.Random(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(101), card.Num)
	assert.Equal(t, "HI @everyone\nb/<a href='https://2ch.hk/b/res/100.html#101'>100</a>", card.Text)
	assert.Equal(t, []Button{
		{Text: "👎", Data: "101+-1"},
		{Text: "+0", Data: "101+0"},
		{Text: "👍", Data: "101+1"},
	}, card.Keyboard)
}

func TestSelector_ForContent(t *testing.T) {
	s, _ := setupSelector(t, domain.Record{Num: 1, Text: "A @", Parent: 1})

	for _, ct := range domain.ContentTypes {
		card, err := s.ForContent(context.Background(), ct)
		require.NoError(t, err, ct)
		assert.Equal(t, int64(1), card.Num)
	}

	_, err := s.ForContent(context.Background(), "memes")
	require.Error(t, err)
}

func TestSelector_Vote(t *testing.T) {
	s, repos := setupSelector(t,
		domain.Record{Num: 7, Text: "SEVEN @", Parent: 7},
		domain.Record{Num: 8, Text: "EIGHT @", Parent: 7},
	)
	ctx := context.Background()

	kb, err := s.Vote(ctx, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, "+1", kb[1].Text)

	rec, err := repos.Record.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Rating)

	_, err = s.Vote(ctx, 8, -1)
	require.NoError(t, err)
	_, err = s.Vote(ctx, 7, -1)
	require.NoError(t, err)
	kb, err = s.Vote(ctx, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, "+1", kb[1].Text, "[+1, -1, +1] gives 1")

	kb, err = s.Vote(ctx, 7, 0)
	require.NoError(t, err)
	assert.Equal(t, "+1", kb[1].Text)

	kb, err = s.Vote(ctx, 8, 0)
	require.NoError(t, err)
	assert.Equal(t, "-1", kb[1].Text)

	_, err = s.Vote(ctx, 999, 1)
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.Vote(ctx, 999, 0)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

type failingStore struct{}

func (failingStore) Random(context.Context) (*domain.Record, error) {
	return nil, errors.New("db gone")
}

func (failingStore) Get(context.Context, int64) (*domain.Record, error) {
	return nil, errors.New("db gone")
}

func (failingStore) AdjustRating(context.Context, int64, int) (int, error) {
	return 0, errors.New("db gone")
}

func TestSelector_StoreErrors(t *testing.T) {
	s := NewSelector(failingStore{}, "b", "https://2ch.hk")
	_, err := s.Random(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoContent)
	assert.Contains(t, err.Error(), "db gone")
}

func TestKeyboard(t *testing.T) {
	kb := Keyboard(42, -3)
	require.Len(t, kb, 3)
	assert.Equal(t, "-3", kb[1].Text)
	assert.Equal(t, "42+-1", kb[0].Data)
	assert.Equal(t, "42+1", kb[2].Data)
	assert.Equal(t, "+12", Keyboard(1, 12)[1].Text)
}

func TestParseVote(t *testing.T) {
	tests := []struct {
		data      string
		num       int64
		delta     int
		wantError bool
	}{
		{data: "7+1", num: 7, delta: 1},
		{data: "7+-1", num: 7, delta: -1},
		{data: "7+0", num: 7, delta: 0},
		{data: "7", wantError: true},
		{data: "x+1", wantError: true},
		{data: "7+x", wantError: true},
		{data: "7+5", wantError: true},
		{data: "", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			num, delta, err := ParseVote(tt.data)
			if tt.wantError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.num, num)
			assert.Equal(t, tt.delta, delta)
		})
	}

	num, delta, err := ParseVote(VoteData(123, -1))
	require.NoError(t, err)
	assert.Equal(t, int64(123), num)
	assert.Equal(t, -1, delta)
}
