package wirekit

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Lifetime enumerates the built-in lifecycles. The zero value is Transient,
// which is what an instance gets when neither it nor its plugin type names a
// lifecycle.
type Lifetime int

const (
	// Transient caches one object per build session: every request for the
	// same instance within one top-level resolution shares the object, and
	// the next resolution starts empty.
	Transient Lifetime = iota

	// Unique builds a new object for every request, even within one session.
	Unique

	// Singleton builds the object once per container. Concurrent first
	// requests block until the single construction finishes.
	Singleton
)

// String returns the string representation of the Lifetime.
func (l Lifetime) String() string {
	switch l {
	case Transient:
		return "Transient"
	case Unique:
		return "Unique"
	case Singleton:
		return "Singleton"
	default:
		return fmt.Sprintf("Unknown(%d)", int(l))
	}
}

// IsValid checks if the lifetime is valid.
func (l Lifetime) IsValid() bool {
	return l >= Transient && l <= Singleton
}

// FindCache implements Lifecycle.
func (l Lifetime) FindCache(s *Session) ObjectCache {
	switch l {
	case Transient:
		return s.transientCache()
	case Singleton:
		return s.state.singletons
	default:
		return nil
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Lifetime) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Lifetime) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "transient", "perrequest":
		*l = Transient
	case "unique":
		*l = Unique
	case "singleton":
		*l = Singleton
	default:
		return fmt.Errorf("invalid lifetime: %q", string(text))
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l Lifetime) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Lifetime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	return l.UnmarshalText([]byte(s))
}
