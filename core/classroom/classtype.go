package classroom

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Class levels
const (
	MinLevel = 1
	MaxLevel = 10

	// from this level on, students follow a track (Science, Arts or Computer)
	TrackLevel = 8
)

// ClassType is the track followed by a class. Its wire form is a 2-digit code.
type ClassType int

const (
	General ClassType = iota
	Science
	Arts
	Computer
)

var (
	ErrInvalidClassType  = errors.New("invalid class type")
	ErrInvalidClassLevel = errors.Errorf("class level must be between %d and %d", MinLevel, MaxLevel)

	typeCodes = map[ClassType]string{
		General:  "00",
		Science:  "11",
		Arts:     "22",
		Computer: "33",
	}
	typeNames = map[ClassType]string{
		General:  "General",
		Science:  "Science",
		Arts:     "Arts",
		Computer: "Computer",
	}
)

// Code returns the wire code of the ClassType.
func (ct ClassType) Code() string {
	if code, ok := typeCodes[ct]; ok {
		return code
	}
	return ""
}

func (ct ClassType) String() string {
	if name, ok := typeNames[ct]; ok {
		return name
	}
	return fmt.Sprintf("ClassType(%d)", int(ct))
}

func (ct ClassType) IsValid() bool {
	_, ok := typeCodes[ct]
	return ok
}

// DecodeClassType maps a wire code back to its ClassType.
func DecodeClassType(code string) (ClassType, error) {
	for ct, c := range typeCodes {
		if c == code {
			return ct, nil
		}
	}
	return General, errors.Wrapf(ErrInvalidClassType, "decoding %q", code)
}

// TypeFor derives the ClassType of a class from its level and the requested track name.
// Levels up to 7 are always General. From level 8 on, anything that is neither
// "Science" nor "Arts" (exact case) falls back to Computer.
func TypeFor(level int, name string) ClassType {
	if level < TrackLevel {
		return General
	}
	switch strings.TrimSpace(name) {
	case typeNames[Science]:
		return Science
	case typeNames[Arts]:
		return Arts
	default:
		return Computer
	}
}

// ValidLevel reports whether level is a known class level.
func ValidLevel(level int) bool {
	return level >= MinLevel && level <= MaxLevel
}

func (ct ClassType) MarshalJSON() ([]byte, error) {
	return json.Marshal(ct.Code())
}

func (ct *ClassType) UnmarshalJSON(data []byte) error {
	var code string
	if err := json.Unmarshal(data, &code); err != nil {
		return errors.Wrap(err, "unmarshalling class type")
	}
	decoded, err := DecodeClassType(code)
	if err != nil {
		return err
	}
	*ct = decoded
	return nil
}
