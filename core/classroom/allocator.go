package classroom

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Sequencer hands out sequence numbers per Bucket.
// NextSequence must be atomic: concurrent calls for the same Bucket never return the same value.
// The first call for a Bucket returns 1 unless students were enrolled in it before the counter existed,
// in which case it continues after the latest one.
type Sequencer interface {
	NextSequence(ctx context.Context, b Bucket) (int, error)
}

// LatestFinder returns the roll number of the most recently enrolled student of a Bucket
// ("" when the bucket is empty). Sequencers use it to seed a bucket counter.
type LatestFinder interface {
	LatestRollNumber(ctx context.Context, b Bucket) (string, error)
}

// Allocator allocates student roll numbers.
type Allocator struct {
	seq Sequencer
	now func() time.Time
}

func NewAllocator(seq Sequencer) *Allocator {
	return &Allocator{seq: seq, now: time.Now}
}

// WithClock returns a copy of the Allocator reading the current time from `now`.
func (a *Allocator) WithClock(now func() time.Time) *Allocator {
	return &Allocator{seq: a.seq, now: now}
}

// Allocate returns the next roll number of the class described by level and track name.
func (a *Allocator) Allocate(ctx context.Context, level int, typeName string) (RollNumber, error) {
	if !ValidLevel(level) {
		return RollNumber{}, ErrInvalidClassLevel
	}
	b := NewBucket(a.now(), level, TypeFor(level, typeName))
	seq, err := a.seq.NextSequence(ctx, b)
	if err != nil {
		return RollNumber{}, errors.Wrapf(err, "allocating sequence for bucket %s", b.Key())
	}
	return RollNumber{Bucket: b, Seq: seq}, nil
}

// SeedFrom returns the last issued sequence of a Bucket according to `finder`.
func SeedFrom(ctx context.Context, finder LatestFinder, b Bucket) (int, error) {
	latest, err := finder.LatestRollNumber(ctx, b)
	if err != nil {
		return 0, errors.Wrap(err, "finding latest roll number")
	}
	return SequenceOf(latest)
}
