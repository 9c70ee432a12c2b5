package classroom

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrInvalidRollNumber = errors.New("invalid roll number")
	ErrRollNumberTaken   = errors.New("roll number already taken")

	rollNumberRegex = regexp.MustCompile(`^(\d{2})(\d{2})(\d{2})-(\d{3,})$`)
)

// Bucket groups the students whose roll numbers share a sequence:
// same enrollment year, class level and class type.
type Bucket struct {
	Year  int // 2-digit year
	Level int
	Type  ClassType
}

// NewBucket returns the Bucket of a class for the year of `t`.
func NewBucket(t time.Time, level int, typ ClassType) Bucket {
	return Bucket{Year: t.Year() % 100, Level: level, Type: typ}
}

// Key returns the roll number prefix of the bucket, e.g. "250811".
func (b Bucket) Key() string {
	return fmt.Sprintf("%02d%02d%s", b.Year, b.Level, b.Type.Code())
}

// RollNumber identifies a student: {yy}{level}{type code}-{sequence}.
type RollNumber struct {
	Bucket
	Seq int
}

func (rn RollNumber) String() string {
	return fmt.Sprintf("%s-%03d", rn.Key(), rn.Seq)
}

// ParseRollNumber decodes a roll number, e.g. "250811-004".
func ParseRollNumber(s string) (RollNumber, error) {
	m := rollNumberRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return RollNumber{}, errors.Wrapf(ErrInvalidRollNumber, "parsing %q", s)
	}
	year, _ := strconv.Atoi(m[1])
	level, _ := strconv.Atoi(m[2])
	typ, err := DecodeClassType(m[3])
	if err != nil {
		return RollNumber{}, errors.Wrapf(ErrInvalidRollNumber, "parsing %q", s)
	}
	seq, err := strconv.Atoi(m[4])
	if err != nil {
		return RollNumber{}, errors.Wrapf(ErrInvalidRollNumber, "parsing %q", s)
	}
	return RollNumber{Bucket: Bucket{Year: year, Level: level, Type: typ}, Seq: seq}, nil
}

// SequenceOf returns the sequence number found after the "-" of a roll number.
// Returns 0 for an empty roll number.
func SequenceOf(rollNumber string) (int, error) {
	if rollNumber == "" {
		return 0, nil
	}
	idx := strings.LastIndex(rollNumber, "-")
	if idx < 0 {
		return 0, errors.Wrapf(ErrInvalidRollNumber, "parsing %q", rollNumber)
	}
	seq, err := strconv.Atoi(rollNumber[idx+1:])
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidRollNumber, "parsing %q", rollNumber)
	}
	return seq, nil
}
