package activity

import (
	"encoding/json"
	"strconv"

	"github.com/nackswinget/calsync/pkg/errors"
)

// EventID is the identity of a bookable activity within its owning calendar.
// The portal assigns decimal numeric identifiers; "newer than" comparisons
// must be numeric ("9" < "10" even though "9" > "10" lexicographically).
// Encapsulating the parsed value here makes lexicographic comparison of raw
// strings impossible by construction.
type EventID struct {
	n   int64
	raw string
}

// NewEventID builds an EventID from the portal's numeric activity id.
func NewEventID(n int64) EventID {
	return EventID{n: n, raw: strconv.FormatInt(n, 10)}
}

// ParseEventID parses a decimal identifier string. The empty string yields
// the zero EventID, which compares less than every real identifier; this is
// the "no event notified yet" cursor state.
func ParseEventID(s string) (EventID, error) {
	if s == "" {
		return EventID{}, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return EventID{}, errors.Newf(errors.ErrCodeValidation, "event id %q is not numeric", s)
	}
	return EventID{n: n, raw: s}, nil
}

// IsZero reports whether the id is the absent/zero cursor.
func (id EventID) IsZero() bool { return id.raw == "" }

// Less reports whether id orders before other numerically. The zero id
// orders before everything.
func (id EventID) Less(other EventID) bool {
	if id.IsZero() {
		return !other.IsZero()
	}
	if other.IsZero() {
		return false
	}
	return id.n < other.n
}

// After reports whether id orders strictly after other numerically.
func (id EventID) After(other EventID) bool { return other.Less(id) }

// Int64 returns the numeric value, 0 for the zero id.
func (id EventID) Int64() int64 { return id.n }

// String returns the identifier as it appeared at the source, "" for the
// zero id. This form is carried as the iCalendar UID.
func (id EventID) String() string { return id.raw }

// MarshalJSON encodes the id as its source string, "" for the zero id.
func (id EventID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.raw)
}

// UnmarshalJSON decodes a source string back into a validated id.
func (id *EventID) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseEventID(raw)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
