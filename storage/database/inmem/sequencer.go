package inmemdb

import (
	"context"

	"github.com/myschool/backend/core/classroom"
)

type sequencer struct {
	db     *seqTable
	finder classroom.LatestFinder
}

// NewSequencer returns a classroom.Sequencer whose counters are seeded from the students of `db`.
func NewSequencer(db *DB) classroom.Sequencer {
	return &sequencer{db: db.seqs, finder: NewUserRepository(db)}
}

func (s *sequencer) NextSequence(ctx context.Context, b classroom.Bucket) (int, error) {
	s.db.Lock()
	defer s.db.Unlock()

	key := b.Key()
	seq, ok := s.db.table[key]
	if !ok {
		seed, err := classroom.SeedFrom(ctx, s.finder, b)
		if err != nil {
			return 0, err
		}
		seq = seed
	}
	seq++
	s.db.table[key] = seq
	return seq, nil
}
