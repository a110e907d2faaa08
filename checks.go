package ice

import (
	"context"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pion/stun"
)

// checkTransaction is one in-flight STUN Binding request on a candidate
// pair, tracked until its response arrives or the retransmission schedule
// runs out.
type checkTransaction struct {
	id           [stun.TransactionIDSize]byte
	pairID       uint64
	destination  net.Addr
	useCandidate bool

	// keepalive transactions refresh the selected pair; their timeout
	// never fails the pair.
	keepalive bool

	raw      []byte
	attempts int
	schedule backoff.BackOff
	timer    *time.Timer
}

// newRetransmitSchedule builds the RFC 5389 7.2.1 backoff: RTO, 2*RTO,
// 4*RTO and so on, without jitter. The attempt count is bounded by the
// agent, not the schedule.
func newRetransmitSchedule(rto time.Duration) backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     rto,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         rto * 64,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// sendConnectivityCheck transmits an authenticated Binding request on p and
// moves it to in-progress. USE-CANDIDATE rides along when a controlling
// agent is nominating p.
func (a *Agent) sendConnectivityCheck(p *CandidatePair) error {
	nominating := p.nominate && a.role == RoleControlling
	t, err := a.sendBindingRequest(p, nominating, false)
	if err != nil {
		return err
	}

	p.state = CandidatePairStateInProgress
	a.log.Debugf("sent check on %s (nominating: %t, txid %x)", p, nominating, t.id)
	return nil
}

// sendKeepalive refreshes consent on the selected pair without touching its
// state.
func (a *Agent) sendKeepalive(p *CandidatePair) error {
	t, err := a.sendBindingRequest(p, false, true)
	if err != nil {
		return err
	}
	a.log.Tracef("sent keepalive on %s (txid %x)", p, t.id)
	return nil
}

func (a *Agent) sendBindingRequest(p *CandidatePair, useCandidate, keepalive bool) (*checkTransaction, error) {
	setters := []stun.Setter{
		stun.BindingRequest,
		stun.TransactionID,
		stun.NewUsername(a.remoteUfrag + ":" + a.localUfrag),
		AttrControl{Role: a.role, Tiebreaker: a.tieBreaker},
		PriorityAttr(peerReflexivePriority(p.Local)),
	}
	if useCandidate {
		setters = append(setters, UseCandidate())
	}
	setters = append(setters,
		stun.NewShortTermIntegrity(a.remotePwd),
		stun.Fingerprint,
	)

	msg, err := stun.Build(setters...)
	if err != nil {
		return nil, err
	}

	t := &checkTransaction{
		id:           msg.TransactionID,
		pairID:       p.id,
		destination:  p.Remote.addr(),
		useCandidate: useCandidate,
		keepalive:    keepalive,
		raw:          msg.Raw,
		schedule:     newRetransmitSchedule(a.rto),
	}
	a.checkTransactions[t.id] = t

	if _, err := p.Local.writeTo(msg.Raw, t.destination); err != nil {
		delete(a.checkTransactions, t.id)
		return nil, err
	}

	a.armCheckTimer(t, t.schedule.NextBackOff())
	return t, nil
}

func (a *Agent) armCheckTimer(t *checkTransaction, d time.Duration) {
	id := t.id
	t.timer = time.AfterFunc(d, func() {
		if err := a.run(a.context(), func(_ context.Context, agent *Agent) {
			agent.onCheckTimer(id)
		}); err != nil {
			a.log.Tracef("check timer for %x stopped: %v", id, err)
		}
	})
}

// onCheckTimer retransmits an unanswered request or, once the budget is
// spent, times the transaction out and fails its pair.
func (a *Agent) onCheckTimer(id [stun.TransactionIDSize]byte) {
	t, ok := a.checkTransactions[id]
	if !ok {
		return
	}

	pair := a.checklist.findByID(t.pairID)
	if pair == nil {
		delete(a.checkTransactions, id)
		a.log.Debugf("%v, dropping transaction %x", errAttachToClosedPair, id)
		return
	}

	if t.attempts < a.maxRetransmissions {
		t.attempts++
		a.log.Debugf("retransmit %d/%d on %s", t.attempts, a.maxRetransmissions, pair)
		if _, err := pair.Local.writeTo(t.raw, t.destination); err != nil {
			a.log.Warnf("failed to retransmit on %s: %v", pair, err)
		}
		next := t.schedule.NextBackOff()
		if t.attempts == a.maxRetransmissions {
			next = a.rto * finalRetransmissionFactor
		}
		a.armCheckTimer(t, next)
		return
	}

	delete(a.checkTransactions, id)
	if t.keepalive {
		a.log.Debugf("keepalive on %s went unanswered", pair)
		return
	}
	a.log.Infof("check on %s timed out after %d retransmissions", pair, t.attempts)
	a.failPair(pair)
}

// failPair records a conclusive check failure and lets same-foundation
// siblings proceed.
func (a *Agent) failPair(p *CandidatePair) {
	p.state = CandidatePairStateFailed
	a.checklist.unfreeze(p.foundationKey())
}

func (a *Agent) stopTransaction(t *checkTransaction) {
	if t.timer != nil {
		t.timer.Stop()
	}
	delete(a.checkTransactions, t.id)
}

func (a *Agent) stopAllTransactions() {
	for _, t := range a.checkTransactions {
		if t.timer != nil {
			t.timer.Stop()
		}
	}
	a.checkTransactions = make(map[[stun.TransactionIDSize]byte]*checkTransaction)

	for _, t := range a.gatherTransactions {
		if t.timer != nil {
			t.timer.Stop()
		}
	}
	a.gatherTransactions = make(map[[stun.TransactionIDSize]byte]*gatherTransaction)
	a.gatherQueue = nil
}

// handleInbound demultiplexes a decoded STUN message arriving on a local
// candidate's socket. Runs on the taskLoop.
func (a *Agent) handleInbound(m *stun.Message, local Candidate, remote net.Addr) {
	if m == nil || local == nil {
		return
	}

	if !isBindingTraffic(m) {
		a.log.Tracef("unhandled STUN message %s from %s", m.Type, remote)
		return
	}

	switch m.Type.Class {
	case stun.ClassRequest:
		a.handleBindingRequest(m, local, remote)
	case stun.ClassSuccessResponse:
		if t, ok := a.gatherTransactions[m.TransactionID]; ok {
			a.handleGatherResponse(t, m)
			return
		}
		a.handleBindingSuccess(m, local, remote)
	case stun.ClassErrorResponse:
		a.handleBindingError(m, remote)
	case stun.ClassIndication:
		if c := a.findRemoteCandidate(local.NetworkType(), remote); c != nil {
			c.seen(false)
		}
	}
}

// handleBindingRequest answers a peer connectivity check: authenticate,
// resolve role conflicts, learn peer-reflexive remotes, reply with the
// mapped address and feed nomination to the selector.
func (a *Agent) handleBindingRequest(m *stun.Message, local Candidate, remote net.Addr) {
	if err := assertInboundFingerprint(m); err != nil {
		a.log.Warnf("discarded check from %s: %v", remote, err)
		return
	}
	// The peer's first checks may outrun the signalling that delivers its
	// ufrag. Integrity is over our own password, so the request can still
	// be authenticated and answered; only the remote half of the USERNAME
	// stays unverified until SetRemoteCredentials.
	if a.remoteUfrag == "" {
		if err := assertInboundUsernamePrefix(m, a.localUfrag+":"); err != nil {
			a.log.Warnf("discarded check from %s: %v", remote, err)
			return
		}
	} else if err := assertInboundUsername(m, a.localUfrag+":"+a.remoteUfrag); err != nil {
		a.log.Warnf("discarded check from %s: %v", remote, err)
		return
	}
	if err := assertInboundMessageIntegrity(m, []byte(a.localPwd)); err != nil {
		a.log.Warnf("discarded check from %s: %v", remote, err)
		return
	}

	var control AttrControl
	if err := control.GetFrom(m); err == nil && control.Role == a.role {
		if !a.resolveRoleConflict(m, local, remote, control.Tiebreaker) {
			return
		}
	}

	ip, port, _, ok := parseAddr(remote)
	if !ok {
		a.log.Warnf("discarded check from unparseable source %s", remote)
		return
	}

	remoteCand := a.findRemoteCandidate(local.NetworkType(), remote)
	if remoteCand == nil {
		var prio PriorityAttr
		if err := prio.GetFrom(m); err != nil {
			a.log.Debugf("check from unknown %s carries no PRIORITY: %v", remote, err)
		}
		prflx, err := NewCandidatePeerReflexive(&CandidatePeerReflexiveConfig{
			Network:  udp,
			Address:  ip.String(),
			Port:     port,
			Priority: uint32(prio),
		})
		if err != nil {
			a.log.Warnf("failed to create peer-reflexive candidate for %s: %v", remote, err)
			return
		}
		a.log.Infof("discovered peer-reflexive remote candidate %s", prflx)
		a.addRemoteCandidate(prflx)
		remoteCand = prflx
	}
	remoteCand.seen(false)

	out, err := stun.Build(m, stun.BindingSuccess,
		&stun.XORMappedAddress{IP: ip, Port: port},
		stun.NewShortTermIntegrity(a.localPwd),
		stun.Fingerprint,
	)
	if err != nil {
		a.log.Warnf("failed to build response for %s: %v", remote, err)
		return
	}
	if _, err := local.writeTo(out.Raw, remote); err != nil {
		a.log.Warnf("failed to answer check from %s: %v", remote, err)
	}

	p := a.checklist.find(local, remoteCand)
	if p == nil {
		p = a.addPair(local, remoteCand)
	}
	a.selector.handleBindingRequest(p, UseCandidateAttr{}.IsSet(m))
}

// resolveRoleConflict applies RFC 8445 7.3.1.1 when a request carries our
// own role. Returns false when the request must not be processed further
// (a 487 was sent).
func (a *Agent) resolveRoleConflict(m *stun.Message, local Candidate, remote net.Addr, theirTieBreaker uint64) bool {
	keepRole := a.tieBreaker >= theirTieBreaker
	if a.role == RoleControlling && keepRole || a.role == RoleControlled && !keepRole {
		a.log.Infof("role conflict with %s, keeping %s role", remote, a.role)
		out, err := stun.Build(m, stun.BindingError,
			stun.CodeRoleConflict,
			stun.NewShortTermIntegrity(a.localPwd),
			stun.Fingerprint,
		)
		if err != nil {
			a.log.Warnf("failed to build role conflict response: %v", err)
			return false
		}
		if _, err := local.writeTo(out.Raw, remote); err != nil {
			a.log.Warnf("failed to send role conflict response: %v", err)
		}
		return false
	}

	a.setRole(a.role.invert())
	return true
}

// handleBindingSuccess completes one of our connectivity checks: enforce
// response symmetry, validate, discover peer-reflexive locals and apply the
// valid-pair rules.
func (a *Agent) handleBindingSuccess(m *stun.Message, local Candidate, remote net.Addr) {
	t, ok := a.checkTransactions[m.TransactionID]
	if !ok {
		a.log.Warnf("discarded response from %s with unknown transaction id %x", remote, m.TransactionID)
		return
	}

	pair := a.checklist.findByID(t.pairID)
	if pair == nil {
		a.stopTransaction(t)
		a.log.Debugf("%v, dropping transaction %x", errAttachToClosedPair, t.id)
		return
	}

	// A response must come back from the address the request went to, on
	// the socket it left from. Anything else is a different path and must
	// not validate this pair.
	if !addrEqual(remote, t.destination) ||
		local.BaseAddress() != pair.Local.BaseAddress() ||
		local.BasePort() != pair.Local.BasePort() {
		a.stopTransaction(t)
		a.log.Warnf("check on %s answered from %s, expected %s", pair, remote, t.destination)
		if !t.keepalive {
			a.failPair(pair)
		}
		return
	}

	if err := assertInboundMessageIntegrity(m, []byte(a.remotePwd)); err != nil {
		a.log.Warnf("discarded response from %s: %v", remote, err)
		return
	}
	if err := assertInboundFingerprint(m); err != nil {
		a.log.Warnf("discarded response from %s: %v", remote, err)
		return
	}

	pair.Remote.seen(false)
	a.stopTransaction(t)

	if t.keepalive {
		return
	}

	var mapped stun.XORMappedAddress
	if err := mapped.GetFrom(m); err != nil {
		a.log.Warnf("%v on %s: %v", errMissingXORAddress, pair, err)
		a.failPair(pair)
		return
	}

	pair.state = CandidatePairStateSucceeded
	a.checklist.unfreeze(pair.foundationKey())

	mappedLocal := a.findLocalCandidate(pair.Local.NetworkType(), createAddr(mapped.IP, mapped.Port))
	if mappedLocal == nil && !pairLocalMatches(pair, mapped) {
		prflx, err := NewCandidatePeerReflexive(&CandidatePeerReflexiveConfig{
			Network:  udp,
			Address:  mapped.IP.String(),
			Port:     mapped.Port,
			Priority: peerReflexivePriority(pair.Local),
			RelAddr:  pair.Local.BaseAddress(),
			RelPort:  pair.Local.BasePort(),
		})
		if err != nil {
			a.log.Warnf("failed to create peer-reflexive candidate for %s: %v", mapped, err)
			a.failPair(pair)
			return
		}
		prflx.shareConn(a, pair.Local.socket())
		a.localCandidates = append(a.localCandidates, prflx)
		a.log.Infof("discovered peer-reflexive local candidate %s", prflx)
		mappedLocal = prflx
	}

	valid := pair
	switch {
	case mappedLocal == nil || mappedLocal.Equal(pair.Local):
		// The mapped address is the one we checked from: the pair
		// validated itself.
		pair.valid = true
		a.onValidPair(pair)

	default:
		if e := a.checklist.find(mappedLocal, pair.Remote); e != nil {
			valid = e
			if !e.valid {
				e.state = CandidatePairStateSucceeded
				e.valid = true
				a.onValidPair(e)
			}
		} else {
			a.nextPairID++
			v := newCandidatePair(a.nextPairID, mappedLocal, pair.Remote, a.role == RoleControlling)
			v.state = CandidatePairStateSucceeded
			v.valid = true
			v.discoveredPairID = pair.id
			a.checklist.append(v)
			valid = v
			a.onValidPair(v)
		}
	}

	a.selector.handleCheckSuccess(pair, valid, t.useCandidate)
}

// pairLocalMatches reports whether the mapped address names the pair's own
// local candidate.
func pairLocalMatches(p *CandidatePair, mapped stun.XORMappedAddress) bool {
	return p.Local.Address() == mapped.IP.String() && p.Local.Port() == mapped.Port
}

// handleBindingError processes an error response to one of our checks. 487
// triggers role resolution and a re-check; everything else fails the pair.
func (a *Agent) handleBindingError(m *stun.Message, remote net.Addr) {
	t, ok := a.checkTransactions[m.TransactionID]
	if !ok {
		a.log.Warnf("discarded error response from %s with unknown transaction id %x", remote, m.TransactionID)
		return
	}

	pair := a.checklist.findByID(t.pairID)
	if pair == nil {
		a.stopTransaction(t)
		return
	}

	if m.Contains(stun.AttrMessageIntegrity) {
		if err := assertInboundMessageIntegrity(m, []byte(a.remotePwd)); err != nil {
			a.log.Warnf("discarded error response from %s: %v", remote, err)
			return
		}
	}

	a.stopTransaction(t)

	var code stun.ErrorCodeAttribute
	if err := code.GetFrom(m); err != nil {
		a.log.Warnf("error response on %s carries no ERROR-CODE: %v", pair, err)
		a.failPair(pair)
		return
	}

	if code.Code == stun.CodeRoleConflict {
		a.log.Infof("%s reported a role conflict, resolving", pair.Remote)
		a.tieBreaker = generateTieBreaker()
		a.setRole(a.role.invert())
		pair.state = CandidatePairStateWaiting
		return
	}

	a.log.Warnf("check on %s drew error %d (%s)", pair, code.Code, code.Reason)
	a.failPair(pair)
}
