package ibkr

import (
	"encoding/json"
	"time"

	"github.com/brinvex/brinvex-util-ibkr/date"
)

// Temporal is either a zoned instant or a plain day. Broker reports stamp
// trades with a full datetime but stamp some cash movements with a date only;
// normalizing both into one value type lets identities and comparisons reason
// about a single representation.
type Temporal struct {
	t     time.Time
	zoned bool
}

// At returns the Temporal for a zoned instant.
func At(t time.Time) Temporal { return Temporal{t: t, zoned: true} }

// On returns the Temporal for a plain day.
func On(d date.Date) Temporal { return Temporal{t: d.Time()} }

// IsZero reports whether tp carries no value.
func (tp Temporal) IsZero() bool { return tp.t.IsZero() }

// Zoned reports whether tp carries an instant rather than a plain day.
func (tp Temporal) Zoned() bool { return tp.zoned }

// Time returns the canonical instant: the instant itself, or midnight UTC
// for a plain day.
func (tp Temporal) Time() time.Time { return tp.t }

// Date returns the day the Temporal falls on, in its own zone.
func (tp Temporal) Date() date.Date { return date.New(tp.t.Date()) }

// Before reports whether tp is chronologically before x.
func (tp Temporal) Before(x Temporal) bool { return tp.t.Before(x.t) }

// String renders a plain day as "2006-01-02" and an instant as the RFC 3339
// form of its UTC normalization. Both sort lexically in chronological order,
// which the identity generator relies on.
func (tp Temporal) String() string {
	if tp.zoned {
		return tp.t.UTC().Format(time.RFC3339)
	}
	return tp.t.Format(date.Format)
}

// MarshalJSON implements json.Marshaler.
func (tp Temporal) MarshalJSON() ([]byte, error) {
	return json.Marshal(tp.String())
}

// UnmarshalJSON implements json.Unmarshaler, accepting both renderings of
// String.
func (tp *Temporal) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if d, err := date.Parse(s); err == nil {
		*tp = On(d)
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	*tp = At(t)
	return nil
}
