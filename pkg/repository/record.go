package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dirtypig/pig/pkg/domain"
)

// recordRow is a row of the butthurt table
type recordRow struct {
	ID     int64  `db:"id"`
	Num    int64  `db:"num"`
	Text   string `db:"text"`
	Parent int64  `db:"parent"`
	Rating int    `db:"rating"`
}

// Build describes a finished collection build
type Build struct {
	ID        int64     `db:"id" json:"id"`
	BuiltAt   time.Time `db:"built_at" json:"built_at"`
	Snapshots int       `db:"snapshots" json:"snapshots"`
	Records   int       `db:"records" json:"records"`
}

// RecordRepository handles the collection of classified records
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// ReplaceCollection swaps the whole collection for records in a single transaction.
// Records already known by num keep their rating, new ones start from zero.
// Returns the number of stored records.
func (r *RecordRepository) ReplaceCollection(ctx context.Context, records []domain.Record, snapshots int) (int, error) {
	err := retryOnLock(ctx, func() error {
		return inTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
			var old []recordRow
			if err := tx.SelectContext(ctx, &old, "SELECT num, rating FROM butthurt"); err != nil {
				return fmt.Errorf("get ratings: %w", err)
			}
			ratings := make(map[int64]int, len(old))
			for _, row := range old {
				ratings[row.Num] = row.Rating
			}

			if _, err := tx.ExecContext(ctx, "DELETE FROM butthurt"); err != nil {
				return fmt.Errorf("clear collection: %w", err)
			}

			stmt, err := tx.PrepareNamedContext(ctx,
				"INSERT INTO butthurt (num, text, parent, rating) VALUES (:num, :text, :parent, :rating)")
			if err != nil {
				return fmt.Errorf("prepare insert: %w", err)
			}
			defer stmt.Close()

			for _, rec := range records {
				row := recordRow{Num: rec.Num, Text: rec.Text, Parent: rec.Parent, Rating: ratings[rec.Num]}
				if _, err := stmt.ExecContext(ctx, row); err != nil {
					return fmt.Errorf("insert record %d: %w", rec.Num, err)
				}
			}

			if _, err := tx.ExecContext(ctx, "INSERT INTO builds (built_at, snapshots, records) VALUES (?, ?, ?)",
				time.Now().UTC(), snapshots, len(records)); err != nil {
				return fmt.Errorf("save build: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("replace collection: %w", err)
	}
	return len(records), nil
}

// Random returns a record picked uniformly at random, ErrNotFound if the collection is empty
func (r *RecordRepository) Random(ctx context.Context) (*domain.Record, error) {
	var row recordRow
	err := r.db.GetContext(ctx, &row, "SELECT id, num, text, parent, rating FROM butthurt ORDER BY random() LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get random record: %w", err)
	}
	return row.toDomain(), nil
}

// Get returns a record by post number
func (r *RecordRepository) Get(ctx context.Context, num int64) (*domain.Record, error) {
	var row recordRow
	err := r.db.GetContext(ctx, &row, "SELECT id, num, text, parent, rating FROM butthurt WHERE num = ?", num)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record %d: %w", num, err)
	}
	return row.toDomain(), nil
}

// List returns all records ordered by num
func (r *RecordRepository) List(ctx context.Context) ([]domain.Record, error) {
	var rows []recordRow
	if err := r.db.SelectContext(ctx, &rows, "SELECT id, num, text, parent, rating FROM butthurt ORDER BY num"); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	res := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		res = append(res, *row.toDomain())
	}
	return res, nil
}

// TopRated returns up to limit records rated at least minRating, best first
func (r *RecordRepository) TopRated(ctx context.Context, minRating, limit int) ([]domain.Record, error) {
	var rows []recordRow
	query := "SELECT id, num, text, parent, rating FROM butthurt WHERE rating >= ? ORDER BY rating DESC, num DESC LIMIT ?"
	if err := r.db.SelectContext(ctx, &rows, query, minRating, limit); err != nil {
		return nil, fmt.Errorf("get top rated records: %w", err)
	}
	res := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		res = append(res, *row.toDomain())
	}
	return res, nil
}

// AdjustRating adds delta to the record rating and returns the updated value.
// Update and read-back share a transaction, concurrent votes are never lost.
func (r *RecordRepository) AdjustRating(ctx context.Context, num int64, delta int) (int, error) {
	var rating int
	err := retryOnLock(ctx, func() error {
		return inTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
			res, err := tx.ExecContext(ctx, "UPDATE butthurt SET rating = rating + ? WHERE num = ?", delta, num)
			if err != nil {
				return fmt.Errorf("update rating: %w", err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("get rows affected: %w", err)
			}
			if affected == 0 {
				return ErrNotFound
			}
			if err := tx.GetContext(ctx, &rating, "SELECT rating FROM butthurt WHERE num = ?", num); err != nil {
				return fmt.Errorf("read rating: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("adjust rating of %d: %w", num, err)
	}
	return rating, nil
}

// Count returns the number of records in the collection
func (r *RecordRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM butthurt"); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// LastBuild returns the latest collection build, ErrNotFound if nothing was built yet
func (r *RecordRepository) LastBuild(ctx context.Context) (*Build, error) {
	var b Build
	err := r.db.GetContext(ctx, &b, "SELECT id, built_at, snapshots, records FROM builds ORDER BY id DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get last build: %w", err)
	}
	return &b, nil
}

func (row recordRow) toDomain() *domain.Record {
	return &domain.Record{ID: row.ID, Num: row.Num, Text: row.Text, Parent: row.Parent, Rating: row.Rating}
}
