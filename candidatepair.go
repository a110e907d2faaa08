package ice

import "fmt"

// CandidatePair is a combination of a local and remote candidate of matching
// address family.
type CandidatePair struct {
	id     uint64
	Local  Candidate
	Remote Candidate

	// controlling mirrors the agent role at the last priority computation;
	// it decides which side of the pair contributes G and which D.
	controlling bool

	state     CandidatePairState
	valid     bool
	nominated bool

	// nominate records nomination intent: the next check on this pair
	// carries USE-CANDIDATE (controlling), or the pair is nominated the
	// moment its own check succeeds (controlled).
	nominate bool

	// discoveredPairID points back at the conn-check pair whose check
	// discovered this valid pair, when the mapped address did not match the
	// checked local candidate. Zero for pairs formed by regular pairing.
	discoveredPairID uint64
}

func newCandidatePair(id uint64, local, remote Candidate, controlling bool) *CandidatePair {
	return &CandidatePair{
		id:          id,
		Local:       local,
		Remote:      remote,
		controlling: controlling,
		state:       CandidatePairStateWaiting,
	}
}

func (p *CandidatePair) String() string {
	return fmt.Sprintf("pair %d (%s, prio %d) %s <-> %s", p.id, p.state, p.priority(), p.Local, p.Remote)
}

// priority computes the pair priority (RFC 8445 6.1.2.3) with G the
// controlling agent's candidate priority and D the controlled one's.
func (p *CandidatePair) priority() uint64 {
	var g, d uint64
	if p.controlling {
		g = uint64(p.Local.Priority())
		d = uint64(p.Remote.Priority())
	} else {
		g = uint64(p.Remote.Priority())
		d = uint64(p.Local.Priority())
	}

	// 2^32*MIN(G,D) + 2*MAX(G,D) + (G>D ? 1 : 0)
	if g > d {
		return (1<<32)*d + 2*g + 1
	}
	return (1<<32)*g + 2*d
}

// equal compares pairs by their candidates, the checklist dedup key.
func (p *CandidatePair) equal(other *CandidatePair) bool {
	if p == nil && other == nil {
		return true
	}
	if p == nil || other == nil {
		return false
	}
	return p.Local.Equal(other.Local) && p.Remote.Equal(other.Remote)
}

// foundationKey is the tuple the freezing algorithm groups pairs by.
func (p *CandidatePair) foundationKey() string {
	return p.Local.Foundation() + "/" + p.Remote.Foundation()
}

// writeTo sends application or STUN data to the remote candidate through
// the local one.
func (p *CandidatePair) writeTo(b []byte) (int, error) {
	return p.Local.writeTo(b, p.Remote.addr())
}
