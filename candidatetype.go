package ice

// CandidateType represents the type of candidate
type CandidateType byte

// CandidateType enum
const (
	CandidateTypeUnspecified CandidateType = iota
	CandidateTypeHost
	CandidateTypeServerReflexive
	CandidateTypePeerReflexive
	CandidateTypeRelay
)

// String makes CandidateType printable
func (c CandidateType) String() string {
	switch c {
	case CandidateTypeHost:
		return "host"
	case CandidateTypeServerReflexive:
		return "srflx"
	case CandidateTypePeerReflexive:
		return "prflx"
	case CandidateTypeRelay:
		return "relay"
	default:
		return "Unknown candidate type"
	}
}

// preference returns the type preference used when computing candidate
// priority (RFC 8445 5.1.2.1).
func (c CandidateType) preference() uint16 {
	switch c {
	case CandidateTypeHost:
		return 126
	case CandidateTypePeerReflexive:
		return 110
	case CandidateTypeServerReflexive:
		return 100
	default:
		// Relay and unknown types sort last. Relay candidates are never
		// gathered here but remote ones may still be paired against.
		return 0
	}
}

func unmarshalCandidateType(raw string) (CandidateType, error) {
	switch raw {
	case "host":
		return CandidateTypeHost, nil
	case "srflx":
		return CandidateTypeServerReflexive, nil
	case "prflx":
		return CandidateTypePeerReflexive, nil
	case "relay":
		return CandidateTypeRelay, nil
	default:
		return CandidateTypeUnspecified, ErrUnknownCandidateType
	}
}
