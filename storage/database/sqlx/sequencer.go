package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/myschool/backend/core/classroom"
	"github.com/myschool/backend/storage/database"
)

const incrementSeq = "UPDATE roll_sequences SET seq = seq + 1 WHERE bucket = $1 RETURNING seq"

// sequencer keeps one row per bucket in roll_sequences; the row lock taken by UPDATE serializes allocations.
type sequencer struct {
	db     *sqlx.DB
	finder classroom.LatestFinder
}

func NewSequencer(db *sqlx.DB) classroom.Sequencer {
	return &sequencer{db: db, finder: NewUserRepository(db)}
}

func (s *sequencer) NextSequence(ctx context.Context, b classroom.Bucket) (int, error) {
	key := b.Key()

	var seq int
	err := s.db.GetContext(ctx, &seq, incrementSeq, key)
	if err == nil {
		return seq, nil
	}
	if err != sql.ErrNoRows {
		return 0, errors.Wrap(err, "incrementing roll sequence")
	}

	// first allocation in this bucket
	seed, err := classroom.SeedFrom(ctx, s.finder, b)
	if err != nil {
		return 0, err
	}
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(
			ctx,
			"INSERT INTO roll_sequences (bucket, seq) VALUES ($1, $2) ON CONFLICT (bucket) DO NOTHING",
			key, seed,
		); err != nil {
			return errors.Wrap(err, "seeding roll sequence")
		}
		return errors.Wrap(tx.GetContext(ctx, &seq, incrementSeq, key), "incrementing roll sequence")
	})
	return seq, err
}
