package user_test

import (
	"context"
	"sync"
	"time"

	"github.com/myschool/backend/core/classroom"
)

var timeNow = time.Now

// fixedSequencer replays a list of sequences, e.g. to simulate a stale counter.
type fixedSequencer struct {
	mu   sync.Mutex
	seqs []int
}

func (s *fixedSequencer) NextSequence(_ context.Context, _ classroom.Bucket) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.seqs[0]
	s.seqs = s.seqs[1:]
	return seq, nil
}
