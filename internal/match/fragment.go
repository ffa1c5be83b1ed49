package match

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned when a fragment string or a match record violates
// the ordering or formatting rules of the match file.
var ErrMalformed = errors.New("malformed match")

// Status describes whether a fragment is continuous or discontinuous at
// its N and/or C terminus.
type Status string

const (
	// StatusContinuous is a continuous single chain domain
	StatusContinuous Status = "S"
	// StatusNDiscontinuous is discontinuous at the N terminus
	StatusNDiscontinuous Status = "N"
	// StatusCDiscontinuous is discontinuous at the C terminus
	StatusCDiscontinuous Status = "C"
	// StatusNCDiscontinuous is discontinuous at both termini
	StatusNCDiscontinuous Status = "NC"
)

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusContinuous, StatusNDiscontinuous, StatusCDiscontinuous, StatusNCDiscontinuous:
		return true
	}
	return false
}

// Fragment is one contiguous piece of a signature hit on a protein.
// Positions are 1-based and inclusive.
type Fragment struct {
	Start  int
	End    int
	Status Status
}

// FragmentSet is the ordered list of fragments making up one match.
//
// It is encoded as comma-separated start-end-status triples,
// e.g. "10-50-S" or "10-50-C,80-120-N".
type FragmentSet []Fragment

// ParseFragments parses the comma-separated fragment string encoding.
// The returned set is validated: every fragment has start <= end,
// a known status, and fragments are in ascending order.
func ParseFragments(s string) (FragmentSet, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty fragment string", ErrMalformed)
	}

	parts := strings.Split(s, ",")
	fs := make(FragmentSet, 0, len(parts))
	for _, part := range parts {
		fields := strings.Split(part, "-")
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: fragment %q", ErrMalformed, part)
		}
		start, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%w: fragment start %q", ErrMalformed, part)
		}
		end, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%w: fragment end %q", ErrMalformed, part)
		}
		fs = append(fs, Fragment{Start: start, End: end, Status: Status(fields[2])})
	}

	if err := fs.Validate(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Continuous returns a single continuous fragment covering [start, end].
// Upstream rows without a fragment string are represented this way.
func Continuous(start, end int) FragmentSet {
	return FragmentSet{{Start: start, End: end, Status: StatusContinuous}}
}

// Validate checks positions, statuses and ascending order.
func (fs FragmentSet) Validate() error {
	if len(fs) == 0 {
		return fmt.Errorf("%w: no fragments", ErrMalformed)
	}
	for i, f := range fs {
		if f.Start < 1 || f.Start > f.End {
			return fmt.Errorf("%w: fragment %d-%d has invalid bounds", ErrMalformed, f.Start, f.End)
		}
		if !f.Status.Valid() {
			return fmt.Errorf("%w: fragment status %q", ErrMalformed, f.Status)
		}
		if i > 0 && f.Start < fs[i-1].Start {
			return fmt.Errorf("%w: fragments out of order (%d after %d)", ErrMalformed, f.Start, fs[i-1].Start)
		}
	}
	return nil
}

// Bounds returns the earliest start and the overall maximum end.
func (fs FragmentSet) Bounds() (start, end int) {
	for i, f := range fs {
		if i == 0 || f.Start < start {
			start = f.Start
		}
		if f.End > end {
			end = f.End
		}
	}
	return start, end
}

// String returns the fragment string encoding.
func (fs FragmentSet) String() string {
	var b strings.Builder
	for i, f := range fs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(f.Start))
		b.WriteByte('-')
		b.WriteString(strconv.Itoa(f.End))
		b.WriteByte('-')
		b.WriteString(string(f.Status))
	}
	return b.String()
}

// MarshalJSON encodes the set as its fragment string.
func (fs FragmentSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(fs.String())
}

// UnmarshalJSON decodes and validates a fragment string.
func (fs *FragmentSet) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseFragments(s)
	if err != nil {
		return err
	}
	*fs = parsed
	return nil
}
