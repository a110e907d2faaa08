package ice

// Role dictates which agent drives nomination. Exactly one side of a
// session is controlling; the other is controlled. Conflicts discovered
// during checks are resolved with the 64-bit tie-breaker (RFC 8445 7.3.1.1).
type Role int

const (
	// RoleUnspecified is the zero value and is rejected by NewAgent.
	RoleUnspecified Role = iota

	// RoleControlling agents pick the pair to nominate and conclude the
	// session.
	RoleControlling

	// RoleControlled agents answer checks and follow the peer's nomination.
	RoleControlled
)

func (r Role) String() string {
	switch r {
	case RoleControlling:
		return "controlling"
	case RoleControlled:
		return "controlled"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if r != RoleControlling && r != RoleControlled {
		return nil, ErrUnknownRole
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	switch string(text) {
	case "controlling":
		*r = RoleControlling
	case "controlled":
		*r = RoleControlled
	default:
		return ErrUnknownRole
	}
	return nil
}

// invert returns the opposite role, used when resolving role conflicts.
func (r Role) invert() Role {
	switch r {
	case RoleControlling:
		return RoleControlled
	case RoleControlled:
		return RoleControlling
	default:
		return RoleUnspecified
	}
}
