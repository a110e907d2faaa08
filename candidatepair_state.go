package ice

// CandidatePairState is the state of a candidate pair within the checklist
type CandidatePairState int

const (
	// CandidatePairStateFrozen means another pair with the same foundation
	// tuple must complete a check before this one is scheduled.
	CandidatePairStateFrozen CandidatePairState = iota + 1

	// CandidatePairStateWaiting means a check has not been sent for this
	// pair and it is eligible for scheduling.
	CandidatePairStateWaiting

	// CandidatePairStateInProgress means a check has been sent for this
	// pair and the transaction is still in flight.
	CandidatePairStateInProgress

	// CandidatePairStateFailed means a check for this pair failed: the
	// transaction timed out, broke symmetry, or drew an error response.
	CandidatePairStateFailed

	// CandidatePairStateSucceeded means a check for this pair produced a
	// successful result.
	CandidatePairStateSucceeded
)

func (c CandidatePairState) String() string {
	switch c {
	case CandidatePairStateFrozen:
		return "frozen"
	case CandidatePairStateWaiting:
		return "waiting"
	case CandidatePairStateInProgress:
		return "in-progress"
	case CandidatePairStateFailed:
		return "failed"
	case CandidatePairStateSucceeded:
		return "succeeded"
	default:
		return "Unknown candidate pair state"
	}
}
