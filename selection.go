package ice

import "github.com/pion/logging"

// pairSelector is the role-specific half of the check engine: regular
// nomination for the controlling agent, following USE-CANDIDATE for the
// controlled one. Everything else about checks is role-agnostic.
type pairSelector interface {
	// contactCandidates runs on a Ta tick when no pair is waiting and
	// none is in progress: the checklist settled without a selection.
	contactCandidates()

	// handleBindingRequest applies the nomination part of an inbound,
	// already answered Binding request on pair p.
	handleBindingRequest(p *CandidatePair, useCandidate bool)

	// handleCheckSuccess applies the nomination part of a completed
	// connectivity check: c is the conn-check pair, valid the resolved
	// valid pair and sentUseCandidate whether our request nominated.
	handleCheckSuccess(c, valid *CandidatePair, sentUseCandidate bool)

	// onEndOfCandidates reacts to the remote end-of-candidates signal.
	onEndOfCandidates()
}

func newPairSelector(a *Agent) pairSelector {
	if a.role == RoleControlling {
		return &controllingSelector{agent: a, log: a.log}
	}
	return &controlledSelector{agent: a, log: a.log}
}

type controllingSelector struct {
	agent *Agent
	log   logging.LeveledLogger
}

func (s *controllingSelector) contactCandidates() {
	a := s.agent
	if a.checklist.len() == 0 {
		// Nothing paired yet; candidates may still trickle in.
		return
	}

	if best := a.checklist.best(CandidatePairStateSucceeded); best != nil {
		if best.nominated {
			return
		}
		// Regular nomination: re-check the best succeeded pair with
		// USE-CANDIDATE on the next tick.
		s.log.Debugf("nominating %s", best)
		best.state = CandidatePairStateWaiting
		best.nominate = true
		return
	}

	if a.checklist.allFailed() {
		s.log.Infof("all %d candidate pairs failed", a.checklist.len())
		a.concludeFailure()
	}
}

func (s *controllingSelector) handleBindingRequest(p *CandidatePair, useCandidate bool) {
	if useCandidate {
		// Only the controlling agent may nominate. Be lenient: ignore
		// the attribute rather than failing the pair.
		s.log.Warnf("controlled peer sent USE-CANDIDATE on %s, ignoring", p)
	}
}

func (s *controllingSelector) handleCheckSuccess(c, valid *CandidatePair, sentUseCandidate bool) {
	if sentUseCandidate {
		s.agent.nominatePair(valid)
		return
	}
	// Nomination intent survives on the valid pair; the Ta loop promotes
	// it and the next check carries USE-CANDIDATE.
	if c.nominate {
		c.nominate = false
		valid.nominate = true
	}
}

func (s *controllingSelector) onEndOfCandidates() {
	a := s.agent
	if a.checklist.anyIn(CandidatePairStateWaiting) ||
		a.checklist.anyIn(CandidatePairStateInProgress) ||
		a.checklist.anyIn(CandidatePairStateFrozen) {
		return
	}
	if a.checklist.best(CandidatePairStateSucceeded) != nil {
		// Nomination proceeds on the Ta loop.
		return
	}
	s.log.Infof("end of candidates with no usable pair")
	a.concludeFailure()
}

type controlledSelector struct {
	agent *Agent
	log   logging.LeveledLogger
}

func (s *controlledSelector) contactCandidates() {
	a := s.agent
	if a.checklist.allFailed() {
		s.log.Infof("all %d candidate pairs failed", a.checklist.len())
		a.concludeFailure()
	}
	// Otherwise wait: the controlling peer drives nomination.
}

func (s *controlledSelector) handleBindingRequest(p *CandidatePair, useCandidate bool) {
	if !useCandidate {
		return
	}

	if p.state == CandidatePairStateSucceeded {
		valid := s.agent.checklist.validPairFor(p)
		if valid == nil {
			// Succeeded but not validated means the success arrived on
			// a pair discovered by another check; nominate on its own
			// completion instead.
			p.nominate = true
			return
		}
		if valid.nominated {
			// Keepalive or retransmit of the nominating request.
			return
		}
		s.agent.nominatePair(valid)
		return
	}

	// Nomination is deferred until this pair's own check succeeds.
	p.nominate = true
}

func (s *controlledSelector) handleCheckSuccess(c, valid *CandidatePair, _ bool) {
	if c.nominate || valid.nominate {
		c.nominate = false
		s.agent.nominatePair(valid)
	}
}

func (s *controlledSelector) onEndOfCandidates() {
	// Recorded by the agent; the controlling side concludes the session.
}
