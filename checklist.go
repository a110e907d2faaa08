package ice

import (
	"fmt"
	"sort"

	"github.com/pion/logging"
)

// checklist is the ordered set of candidate pairs under test, kept in
// descending pair priority order.
type checklist struct {
	pairs []*CandidatePair
	log   logging.LeveledLogger
}

func newChecklist(log logging.LeveledLogger) *checklist {
	return &checklist{log: log}
}

func (cl *checklist) len() int {
	return len(cl.pairs)
}

func (cl *checklist) all() []*CandidatePair {
	return cl.pairs
}

// insert adds a pair unless an equal one is already present, computes its
// initial state from the foundations already in the list, and prunes
// redundant pairs. The stored pair is returned, so callers may receive a
// previously inserted equal pair.
func (cl *checklist) insert(p *CandidatePair) *CandidatePair {
	for _, existing := range cl.pairs {
		if existing.equal(p) {
			return existing
		}
	}

	p.state = CandidatePairStateWaiting
	if cl.hasFoundation(p.foundationKey()) {
		p.state = CandidatePairStateFrozen
	}

	cl.pairs = append(cl.pairs, p)
	cl.sort()
	cl.prune()
	return p
}

// append adds a pair produced by valid-pair discovery without touching its
// state. Discovered pairs enter succeeded and must never be re-frozen or
// pruned away.
func (cl *checklist) append(p *CandidatePair) {
	cl.pairs = append(cl.pairs, p)
	cl.sort()
}

func (cl *checklist) sort() {
	sort.SliceStable(cl.pairs, func(i, j int) bool {
		return cl.pairs[i].priority() > cl.pairs[j].priority()
	})
}

// prune drops pairs that share a (local base, remote address) with a
// higher-priority pair. Pairs whose check already started or finished are
// never dropped.
func (cl *checklist) prune() {
	type pruneKey struct {
		baseAddress string
		basePort    int
		remoteAddr  string
		remotePort  int
	}

	seen := make(map[pruneKey]bool, len(cl.pairs))
	kept := cl.pairs[:0]
	for _, p := range cl.pairs {
		key := pruneKey{p.Local.BaseAddress(), p.Local.BasePort(), p.Remote.Address(), p.Remote.Port()}
		if seen[key] &&
			(p.state == CandidatePairStateFrozen || p.state == CandidatePairStateWaiting) {
			cl.log.Tracef("pruned redundant pair %s", p)
			continue
		}
		seen[key] = true
		kept = append(kept, p)
	}
	cl.pairs = kept
}

// hasFoundation reports whether any pair already carries the foundation
// tuple.
func (cl *checklist) hasFoundation(key string) bool {
	for _, p := range cl.pairs {
		if p.foundationKey() == key {
			return true
		}
	}
	return false
}

// unfreeze moves frozen pairs sharing the foundation tuple to waiting. Run
// whenever a check on the tuple completes, successfully or not.
func (cl *checklist) unfreeze(key string) {
	for _, p := range cl.pairs {
		if p.state == CandidatePairStateFrozen && p.foundationKey() == key {
			p.state = CandidatePairStateWaiting
		}
	}
}

func (cl *checklist) find(local, remote Candidate) *CandidatePair {
	for _, p := range cl.pairs {
		if p.Local.Equal(local) && p.Remote.Equal(remote) {
			return p
		}
	}
	return nil
}

func (cl *checklist) findByID(id uint64) *CandidatePair {
	for _, p := range cl.pairs {
		if p.id == id {
			return p
		}
	}
	return nil
}

// best returns the highest-priority pair in the given state. The list is
// priority ordered, so the first match wins.
func (cl *checklist) best(state CandidatePairState) *CandidatePair {
	for _, p := range cl.pairs {
		if p.state == state {
			return p
		}
	}
	return nil
}

func (cl *checklist) anyIn(state CandidatePairState) bool {
	return cl.best(state) != nil
}

// allFailed reports whether checking has conclusively failed: a non-empty
// checklist where every pair failed.
func (cl *checklist) allFailed() bool {
	if len(cl.pairs) == 0 {
		return false
	}
	for _, p := range cl.pairs {
		if p.state != CandidatePairStateFailed {
			return false
		}
	}
	return true
}

// validPairFor resolves the valid pair a completed check on p stands for:
// p itself once validated, the pair discovered by p's check, or any valid
// pair riding the same wire path (same local socket, same remote address),
// whose traffic is indistinguishable from p's own.
func (cl *checklist) validPairFor(p *CandidatePair) *CandidatePair {
	if p.valid {
		return p
	}
	for _, q := range cl.pairs {
		if q.valid && q.discoveredPairID == p.id {
			return q
		}
	}
	for _, q := range cl.pairs {
		if q.valid &&
			q.Remote.Equal(p.Remote) &&
			q.Local.BaseAddress() == p.Local.BaseAddress() &&
			q.Local.BasePort() == p.Local.BasePort() {
			return q
		}
	}
	return nil
}

// setControlling flips the G/D orientation of every pair after a role
// switch and restores priority order.
func (cl *checklist) setControlling(controlling bool) {
	for _, p := range cl.pairs {
		p.controlling = controlling
	}
	cl.sort()
}

func (cl *checklist) String() string {
	return fmt.Sprintf("checklist with %d pairs", len(cl.pairs))
}
