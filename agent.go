package ice

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
	"github.com/pion/stun"
	"github.com/pion/transport/v2"
	"github.com/pion/transport/v2/packetio"
)

// maxBufferSize bounds the Conn read buffer so a reader that stalls cannot
// grow the agent without limit.
const maxBufferSize = 1000 * 1000 // 1MB

// Agent represents the ICE agent. All state below the handler channels is
// owned by the taskLoop goroutine; external calls post tasks and never touch
// it directly.
type Agent struct {
	chanTask chan task

	onConnectionStateChangeHdlr       atomic.Value // func(ConnectionState)
	onSelectedCandidatePairChangeHdlr atomic.Value // func(Candidate, Candidate)
	onCandidateHdlr                   atomic.Value // func(Candidate)

	onConnected     chan struct{}
	onConnectedOnce sync.Once
	onFailed        chan struct{}
	onFailedOnce    sync.Once

	role       Role
	tieBreaker uint64

	connectionState ConnectionState
	gatheringState  GatheringState

	started bool

	localUfrag string
	localPwd   string

	remoteUfrag string
	remotePwd   string

	localCandidates  []Candidate
	remoteCandidates []Candidate

	checklist  *checklist
	selector   pairSelector
	nextPairID uint64

	selectedPair atomic.Value // *CandidatePair

	checkTransactions  map[[stun.TransactionIDSize]byte]*checkTransaction
	gatherTransactions map[[stun.TransactionIDSize]byte]*gatherTransaction
	gatherQueue        []*gatherTransaction
	hostsGathered      bool

	endOfCandidatesReceived bool

	urls         []*URL
	networkTypes []NetworkType
	ipFilter     func(net.IP) bool

	buf *packetio.Buffer

	ta                  time.Duration
	rto                 time.Duration
	maxRetransmissions  int
	keepaliveInterval   time.Duration
	disconnectedTimeout time.Duration
	failedTimeout       time.Duration

	done chan struct{}
	err  atomic.Value // error

	chanCandidate     chan Candidate
	chanCandidatePair chan *CandidatePair
	chanState         chan ConnectionState

	loggerFactory logging.LoggerFactory
	log           logging.LeveledLogger

	net transport.Net
}

type task struct {
	fn   func(context.Context, *Agent)
	done chan struct{}
}

func (a *Agent) ok() error {
	select {
	case <-a.done:
		return a.getErr()
	default:
	}
	return nil
}

func (a *Agent) getErr() error {
	if err, ok := a.err.Load().(error); ok {
		return err
	}
	return ErrClosed
}

// run posts t into the mailbox and blocks until the taskLoop executed it.
// Every piece of agent state is mutated through here.
func (a *Agent) run(ctx context.Context, t func(context.Context, *Agent)) error {
	if err := a.ok(); err != nil {
		return err
	}
	done := make(chan struct{})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case a.chanTask <- task{t, done}:
		<-done
		return nil
	}
}

func (a *Agent) taskLoop() {
	defer func() {
		a.stopAllTransactions()
		a.deleteAllCandidates()

		if err := a.buf.Close(); err != nil {
			a.log.Warnf("failed to close buffer: %v", err)
		}

		a.updateConnectionState(ConnectionStateClosed)

		close(a.chanState)
		close(a.chanCandidate)
		close(a.chanCandidatePair)
	}()

	for {
		select {
		case <-a.done:
			return
		case t := <-a.chanTask:
			t.fn(a.context(), a)
			close(t.done)
		}
	}
}

// NewAgent creates a new Agent.
func NewAgent(config *AgentConfig) (*Agent, error) {
	if config.Role != RoleControlling && config.Role != RoleControlled {
		return nil, ErrRoleMissing
	}

	loggerFactory := config.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}
	log := loggerFactory.NewLogger("ice")

	localUfrag, err := generateUFrag()
	if err != nil {
		return nil, err
	}
	localPwd, err := generatePwd()
	if err != nil {
		return nil, err
	}

	a := &Agent{
		chanTask: make(chan task),

		// The event channels are buffered so the taskLoop can keep
		// announcing while a handler is busy, e.g. blocked posting into
		// a peer agent's mailbox during signalling.
		chanState:         make(chan ConnectionState, 16),
		chanCandidate:     make(chan Candidate, 32),
		chanCandidatePair: make(chan *CandidatePair, 16),

		role: config.Role,

		connectionState: ConnectionStateNew,
		gatheringState:  GatheringStateNew,

		localUfrag: localUfrag,
		localPwd:   localPwd,

		checklist: newChecklist(log),

		checkTransactions:  make(map[[stun.TransactionIDSize]byte]*checkTransaction),
		gatherTransactions: make(map[[stun.TransactionIDSize]byte]*gatherTransaction),

		onConnected: make(chan struct{}),
		onFailed:    make(chan struct{}),
		buf:         packetio.NewBuffer(),
		done:        make(chan struct{}),

		loggerFactory: loggerFactory,
		log:           log,
	}
	a.selector = newPairSelector(a)

	if err := config.initWithDefaults(a); err != nil {
		return nil, err
	}

	a.buf.SetLimitSize(maxBufferSize)

	go a.taskLoop()
	go a.candidateRoutine()
	go a.candidatePairRoutine()
	go a.connectionStateRoutine()

	return a, nil
}

// Run starts candidate gathering and the Ta pacing loop. Credentials are
// available through GetLocalUserCredentials as soon as NewAgent returned;
// connectivity checks start once SetRemoteCredentials was called and a
// remote candidate is known.
func (a *Agent) Run() error {
	var runErr error
	if err := a.run(a.context(), func(ctx context.Context, agent *Agent) {
		if agent.started {
			runErr = ErrMultipleStart
			return
		}
		agent.started = true
		agent.updateConnectionState(ConnectionStateChecking)
		agent.gatherCandidates()
	}); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}

	go a.taLoop()
	return nil
}

// taLoop drives the pacing timer: Ta while checking, the keepalive interval
// once a pair is selected. Each firing is delivered as a task so it
// competes fairly with inbound traffic.
func (a *Agent) taLoop() {
	timer := time.NewTimer(a.ta)
	defer timer.Stop()

	for {
		select {
		case <-a.done:
			return
		case <-timer.C:
			if err := a.run(a.context(), func(_ context.Context, agent *Agent) {
				agent.onTaTick()
			}); err != nil {
				return
			}
			if a.getSelectedPair() != nil {
				timer.Reset(a.keepaliveInterval)
			} else {
				timer.Reset(a.ta)
			}
		}
	}
}

// onTaTick performs one paced action: a keepalive pass once a pair is
// selected, otherwise one gathering transaction or one connectivity check.
func (a *Agent) onTaTick() {
	switch a.connectionState {
	case ConnectionStateFailed, ConnectionStateClosed:
		return
	default:
	}

	if a.getSelectedPair() != nil {
		a.onLivenessTick()
		return
	}

	if a.advanceGathering() {
		return
	}

	if a.remoteUfrag == "" || a.remotePwd == "" {
		return
	}

	if p := a.checklist.best(CandidatePairStateWaiting); p != nil {
		if err := a.sendConnectivityCheck(p); err != nil {
			a.log.Warnf("failed to send check on %s: %v", p, err)
		}
		return
	}

	if a.checklist.anyIn(CandidatePairStateInProgress) {
		return
	}

	a.selector.contactCandidates()
}

// onLivenessTick refreshes the selected pair and watches for silence.
func (a *Agent) onLivenessTick() {
	p := a.getSelectedPair()
	if p == nil {
		return
	}

	now := time.Now()
	silence := now.Sub(p.Remote.LastReceived())
	switch {
	case silence > a.failedTimeout:
		a.log.Infof("no traffic on selected pair for %s, giving up", silence)
		a.concludeFailure()
		return
	case silence > a.disconnectedTimeout:
		if a.connectionState == ConnectionStateCompleted {
			a.updateConnectionState(ConnectionStateDisconnected)
		}
	default:
		if a.connectionState == ConnectionStateDisconnected {
			a.updateConnectionState(ConnectionStateCompleted)
		}
	}

	if now.Sub(p.Local.LastSent()) >= a.keepaliveInterval {
		if err := a.sendKeepalive(p); err != nil {
			a.log.Warnf("failed to send keepalive on %s: %v", p, err)
		}
	}
}

// GetLocalUserCredentials returns the local ufrag and pwd to be signalled to
// the remote peer.
func (a *Agent) GetLocalUserCredentials() (frag string, pwd string, err error) {
	err = a.run(a.context(), func(_ context.Context, agent *Agent) {
		frag = agent.localUfrag
		pwd = agent.localPwd
	})
	return frag, pwd, err
}

// SetRemoteCredentials sets the credentials of the remote agent.
func (a *Agent) SetRemoteCredentials(remoteUfrag, remotePwd string) error {
	switch {
	case remoteUfrag == "":
		return ErrRemoteUfragEmpty
	case remotePwd == "":
		return ErrRemotePwdEmpty
	}

	return a.run(a.context(), func(_ context.Context, agent *Agent) {
		agent.remoteUfrag = remoteUfrag
		agent.remotePwd = remotePwd
	})
}

// AddRemoteCandidate adds a candidate received from the remote peer. Adding
// the same candidate twice is a no-op.
func (a *Agent) AddRemoteCandidate(c Candidate) error {
	if c == nil {
		return nil
	}
	return a.run(a.context(), func(_ context.Context, agent *Agent) {
		agent.addRemoteCandidate(c)
	})
}

// EndOfCandidates signals that the remote peer will offer no further
// candidates. A controlling agent with nothing left to check concludes.
func (a *Agent) EndOfCandidates() error {
	return a.run(a.context(), func(_ context.Context, agent *Agent) {
		agent.endOfCandidatesReceived = true
		agent.selector.onEndOfCandidates()
	})
}

// GetLocalCandidates returns the local candidates gathered so far.
func (a *Agent) GetLocalCandidates() ([]Candidate, error) {
	var res []Candidate
	err := a.run(a.context(), func(_ context.Context, agent *Agent) {
		res = append(res, agent.localCandidates...)
	})
	return res, err
}

func (a *Agent) addRemoteCandidate(c Candidate) {
	for _, existing := range a.remoteCandidates {
		if existing.Equal(c) {
			return
		}
	}
	a.remoteCandidates = append(a.remoteCandidates, c)

	for _, local := range a.localCandidates {
		if local.NetworkType() == c.NetworkType() {
			a.addPair(local, c)
		}
	}
}

// addLocalCandidate registers a gathered or discovered local candidate,
// pairs it against known remotes and optionally announces it. Returns the
// stored candidate, which is the previously known one for duplicates.
func (a *Agent) addLocalCandidate(c Candidate, announce bool) Candidate {
	for _, existing := range a.localCandidates {
		if existing.Equal(c) {
			return existing
		}
	}
	a.localCandidates = append(a.localCandidates, c)

	if announce {
		a.chanCandidate <- c
	}

	for _, remote := range a.remoteCandidates {
		if remote.NetworkType() == c.NetworkType() {
			a.addPair(c, remote)
		}
	}
	return c
}

func (a *Agent) addPair(local, remote Candidate) *CandidatePair {
	a.nextPairID++
	p := newCandidatePair(a.nextPairID, local, remote, a.role == RoleControlling)
	return a.checklist.insert(p)
}

// findLocalCandidate returns the local candidate listening on addr, if any.
func (a *Agent) findLocalCandidate(nt NetworkType, addr net.Addr) Candidate {
	ip, port, _, ok := parseAddr(addr)
	if !ok {
		return nil
	}
	for _, c := range a.localCandidates {
		if c.NetworkType() == nt && c.Address() == ip.String() && c.Port() == port {
			return c
		}
	}
	return nil
}

func (a *Agent) findRemoteCandidate(nt NetworkType, addr net.Addr) Candidate {
	ip, port, _, ok := parseAddr(addr)
	if !ok {
		return nil
	}
	for _, c := range a.remoteCandidates {
		if c.NetworkType() == nt && c.Address() == ip.String() && c.Port() == port {
			return c
		}
	}
	return nil
}

// validateNonSTUNTraffic accepts application data only from known remote
// candidates and stamps their liveness.
func (a *Agent) validateNonSTUNTraffic(local Candidate, remote net.Addr) bool {
	var ok bool
	if err := a.run(a.context(), func(_ context.Context, agent *Agent) {
		if c := agent.findRemoteCandidate(local.NetworkType(), remote); c != nil {
			c.seen(false)
			ok = true
		}
	}); err != nil {
		a.log.Warnf("failed to validate remote traffic: %v", err)
	}
	return ok
}

func (a *Agent) getSelectedPair() *CandidatePair {
	if p, ok := a.selectedPair.Load().(*CandidatePair); ok {
		return p
	}
	return nil
}

// setSelectedPair makes p the pair the Conn writes through and reports the
// change upward.
func (a *Agent) setSelectedPair(p *CandidatePair) {
	a.log.Infof("selected pair changed: %s", p)
	a.selectedPair.Store(p)

	a.updateConnectionState(ConnectionStateCompleted)
	a.chanCandidatePair <- p
	a.onConnectedOnce.Do(func() { close(a.onConnected) })
}

// nominatePair records a completed nomination on p and applies the
// selection policy: select when nothing is selected yet, replace only for a
// strictly higher pair priority.
func (a *Agent) nominatePair(p *CandidatePair) {
	p.nominated = true
	p.nominate = false

	cur := a.getSelectedPair()
	if cur == nil || p.priority() > cur.priority() {
		a.setSelectedPair(p)
	}
}

// onValidPair reports the first usable path. Later validations of further
// pairs do not regress the state once nomination completed.
func (a *Agent) onValidPair(p *CandidatePair) {
	a.log.Debugf("pair became valid: %s", p)
	if a.connectionState == ConnectionStateChecking {
		a.updateConnectionState(ConnectionStateConnected)
	}
}

// concludeFailure stops checking: no usable pair exists or will appear.
func (a *Agent) concludeFailure() {
	if a.connectionState == ConnectionStateFailed {
		return
	}
	a.updateConnectionState(ConnectionStateFailed)
	a.onFailedOnce.Do(func() { close(a.onFailed) })
}

func (a *Agent) updateConnectionState(newState ConnectionState) {
	if a.connectionState == newState {
		return
	}
	a.log.Infof("connection state changed: %s -> %s", a.connectionState, newState)
	a.connectionState = newState
	a.chanState <- newState
}

// setRole switches the agent role after a resolved role conflict and
// reorients every pair priority.
func (a *Agent) setRole(r Role) {
	if a.role == r {
		return
	}
	a.log.Infof("switching role %s -> %s", a.role, r)
	a.role = r
	a.selector = newPairSelector(a)
	a.checklist.setControlling(r == RoleControlling)
}

func (a *Agent) deleteAllCandidates() {
	for _, c := range a.localCandidates {
		if err := c.close(); err != nil {
			a.log.Warnf("failed to close candidate %s: %v", c, err)
		}
	}
	a.localCandidates = nil
	a.remoteCandidates = nil
}

// Close ends the agent: the Ta loop stops, sockets close and the mailbox is
// discarded.
func (a *Agent) Close() error {
	if err := a.ok(); err != nil {
		return err
	}

	a.err.Store(ErrClosed)
	close(a.done)

	a.onConnectedOnce.Do(func() { close(a.onConnected) })
	a.onFailedOnce.Do(func() { close(a.onFailed) })
	return nil
}
