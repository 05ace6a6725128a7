package permissions

import (
	"encoding/json"
	"time"
)

// CapabilitySet is a total mapping from every known capability to a boolean.
// The zero value grants nothing. Values are immutable by convention: With and
// Union return fresh sets and never mutate the receiver, so sets may be
// shared freely across goroutines.
type CapabilitySet struct {
	grants map[Capability]bool
}

// NewCapabilitySet returns a set granting exactly the listed capabilities.
// With no arguments it is the all-false set.
func NewCapabilitySet(granted ...Capability) CapabilitySet {
	if len(granted) == 0 {
		return CapabilitySet{}
	}
	m := make(map[Capability]bool, len(granted))
	for _, c := range granted {
		m[c] = true
	}
	return CapabilitySet{grants: m}
}

// AllCapabilities returns the set granting the full enumeration.
func AllCapabilities() CapabilitySet {
	return NewCapabilitySet(allCapabilities...)
}

// Get reports whether the capability is granted. Capabilities without an
// explicit value read as false; there is no "absent" state.
func (s CapabilitySet) Get(c Capability) bool {
	return s.grants[c]
}

// With returns a copy of the set with the capability set to the given value.
func (s CapabilitySet) With(c Capability, granted bool) CapabilitySet {
	m := make(map[Capability]bool, len(s.grants)+1)
	for k, v := range s.grants {
		if v {
			m[k] = true
		}
	}
	if granted {
		m[c] = true
	} else {
		delete(m, c)
	}
	return CapabilitySet{grants: m}
}

// Union returns the per-capability logical OR of both sets. It is
// commutative, associative, and idempotent, which keeps the resolver's fold
// independent of evaluation order.
func (s CapabilitySet) Union(other CapabilitySet) CapabilitySet {
	m := make(map[Capability]bool, len(s.grants)+len(other.grants))
	for k, v := range s.grants {
		if v {
			m[k] = true
		}
	}
	for k, v := range other.grants {
		if v {
			m[k] = true
		}
	}
	return CapabilitySet{grants: m}
}

// Equal reports whether both sets grant exactly the same capabilities.
func (s CapabilitySet) Equal(other CapabilitySet) bool {
	for _, c := range allCapabilities {
		if s.grants[c] != other.grants[c] {
			return false
		}
	}
	return true
}

// Granted returns the granted capabilities in enumeration order.
func (s CapabilitySet) Granted() []Capability {
	var out []Capability
	for _, c := range allCapabilities {
		if s.grants[c] {
			out = append(out, c)
		}
	}
	return out
}

// MarshalJSON renders the set as a total name-to-bool object so that stored
// records stay readable and diffable.
func (s CapabilitySet) MarshalJSON() ([]byte, error) {
	m := make(map[Capability]bool, len(allCapabilities))
	for _, c := range allCapabilities {
		m[c] = s.grants[c]
	}
	return json.Marshal(m)
}

// UnmarshalJSON accepts a name-to-bool object. Names outside the current
// enumeration are dropped: a record written under an older capability
// contract must still load, and a record written before a capability existed
// reads it as false.
func (s *CapabilitySet) UnmarshalJSON(data []byte) error {
	var raw map[Capability]bool
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m := make(map[Capability]bool, len(raw))
	for k, v := range raw {
		if v && IsValid(k) {
			m[k] = true
		}
	}
	s.grants = m
	return nil
}

// Role is a user's single baseline grant. Exactly one role is referenced per
// user record.
type Role struct {
	ID          string
	Name        string
	Description string
	Grants      CapabilitySet
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserGroup is a supplemental grant a user can hold through membership. An
// inactive group contributes nothing during resolution even while membership
// records still reference it.
type UserGroup struct {
	ID        string
	Name      string
	Grants    CapabilitySet
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Membership joins a user to a group.
type Membership struct {
	UserID     string
	GroupID    string
	AssignedAt time.Time
}

// IndividualOverride is a per-user additive exception layered on top of role
// and group grants. At most one record exists per user; absence means "no
// override", not "all false".
type IndividualOverride struct {
	ID        string
	UserID    string
	Grants    CapabilitySet
	CreatedAt time.Time
	UpdatedAt time.Time
}
