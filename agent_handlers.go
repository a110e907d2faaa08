package ice

// OnConnectionStateChange sets a handler that is fired when the connection
// state changes.
func (a *Agent) OnConnectionStateChange(f func(ConnectionState)) error {
	a.onConnectionStateChangeHdlr.Store(f)
	return nil
}

// OnSelectedCandidatePairChange sets a handler that is fired when the
// selected candidate pair changes.
func (a *Agent) OnSelectedCandidatePairChange(f func(Candidate, Candidate)) error {
	a.onSelectedCandidatePairChangeHdlr.Store(f)
	return nil
}

// OnCandidate sets a handler that is fired for every local candidate as it
// is gathered or discovered. When gathering completes the handler is
// invoked one final time with nil.
func (a *Agent) OnCandidate(f func(Candidate)) error {
	a.onCandidateHdlr.Store(f)
	return nil
}

func (a *Agent) onSelectedCandidatePairChange(p *CandidatePair) {
	if h, ok := a.onSelectedCandidatePairChangeHdlr.Load().(func(Candidate, Candidate)); ok {
		h(p.Local, p.Remote)
	}
}

func (a *Agent) onCandidate(c Candidate) {
	if h, ok := a.onCandidateHdlr.Load().(func(Candidate)); ok {
		h(c)
	}
}

func (a *Agent) onConnectionStateChange(s ConnectionState) {
	if h, ok := a.onConnectionStateChangeHdlr.Load().(func(ConnectionState)); ok {
		h(s)
	}
}

// The routines below decouple handler execution from the taskLoop: a slow
// handler delays further events but never a connectivity check.

func (a *Agent) candidatePairRoutine() {
	for p := range a.chanCandidatePair {
		a.onSelectedCandidatePairChange(p)
	}
}

func (a *Agent) connectionStateRoutine() {
	for s := range a.chanState {
		a.onConnectionStateChange(s)
	}
}

func (a *Agent) candidateRoutine() {
	for c := range a.chanCandidate {
		a.onCandidate(c)
	}
}
