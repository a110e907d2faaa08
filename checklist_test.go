package ice

import (
	"testing"

	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChecklist() *checklist {
	return newChecklist(logging.NewDefaultLoggerFactory().NewLogger("ice"))
}

func hostPair(t *testing.T, id uint64, localAddr string, localPort int, remoteAddr string, remotePort int) *CandidatePair {
	t.Helper()
	local := mustCandidateHost(t, &CandidateHostConfig{Network: "udp", Address: localAddr, Port: localPort})
	remote := mustCandidateHost(t, &CandidateHostConfig{Network: "udp", Address: remoteAddr, Port: remotePort})
	return newCandidatePair(id, local, remote, true)
}

func TestChecklistInitialState(t *testing.T) {
	cl := newTestChecklist()

	// First pair of a foundation tuple starts waiting.
	first := cl.insert(hostPair(t, 1, "10.0.0.1", 40000, "10.0.0.2", 50000))
	assert.Equal(t, CandidatePairStateWaiting, first.state)

	// Same local base, same remote foundation: frozen behind the first.
	second := cl.insert(hostPair(t, 2, "10.0.0.1", 41000, "10.0.0.2", 51000))
	assert.Equal(t, CandidatePairStateFrozen, second.state)

	// Distinct foundation tuple: waiting again.
	third := cl.insert(hostPair(t, 3, "192.168.0.1", 42000, "10.0.0.2", 50000))
	assert.Equal(t, CandidatePairStateWaiting, third.state)
}

func TestChecklistInsertIdempotent(t *testing.T) {
	cl := newTestChecklist()

	p := cl.insert(hostPair(t, 1, "10.0.0.1", 40000, "10.0.0.2", 50000))
	again := cl.insert(hostPair(t, 2, "10.0.0.1", 40000, "10.0.0.2", 50000))

	assert.Same(t, p, again)
	assert.Equal(t, 1, cl.len())
}

func TestChecklistPrune(t *testing.T) {
	cl := newTestChecklist()

	host := mustCandidateHost(t, &CandidateHostConfig{Network: "udp", Address: "10.0.0.1", Port: 40000})
	srflx := mustCandidateSrflx(t, &CandidateServerReflexiveConfig{
		Network: "udp", Address: "1.2.3.4", Port: 40001,
		RelAddr: "10.0.0.1", RelPort: 40000,
	})
	remote := mustCandidateHost(t, &CandidateHostConfig{Network: "udp", Address: "10.0.0.2", Port: 50000})

	// The srflx pair shares the host pair's base and remote: its check
	// would be indistinguishable, so only the host pair survives.
	cl.insert(newCandidatePair(1, srflx, remote, true))
	cl.insert(newCandidatePair(2, host, remote, true))

	require.Equal(t, 1, cl.len())
	assert.Equal(t, CandidateTypeHost, cl.all()[0].Local.Type())
}

func TestChecklistPruneKeepsDistinctKeys(t *testing.T) {
	cl := newTestChecklist()

	// Two srflx candidates from one base against the same remote collapse
	// to one pair; a second remote keeps its own pair.
	s1 := mustCandidateSrflx(t, &CandidateServerReflexiveConfig{
		Network: "udp", Address: "1.2.3.4", Port: 40001,
		RelAddr: "10.0.0.1", RelPort: 40000, Server: "stun:stun1.example.net:3478",
	})
	s2 := mustCandidateSrflx(t, &CandidateServerReflexiveConfig{
		Network: "udp", Address: "1.2.3.4", Port: 40002,
		RelAddr: "10.0.0.1", RelPort: 40000, Server: "stun:stun2.example.net:3478",
	})
	remote := mustCandidateHost(t, &CandidateHostConfig{Network: "udp", Address: "10.0.0.2", Port: 50000})
	otherRemote := mustCandidateHost(t, &CandidateHostConfig{Network: "udp", Address: "10.0.0.3", Port: 50000})

	cl.insert(newCandidatePair(1, s1, remote, true))
	cl.insert(newCandidatePair(2, s2, remote, true))
	cl.insert(newCandidatePair(3, s1, otherRemote, true))

	assert.Equal(t, 2, cl.len())

	// No two survivors share a pruning key.
	seen := map[string]bool{}
	for _, p := range cl.all() {
		key := p.Local.BaseAddress() + "/" + p.Remote.Address()
		assert.False(t, seen[key])
		seen[key] = true
	}
}

func TestChecklistPruneSparesStartedChecks(t *testing.T) {
	cl := newTestChecklist()

	host := mustCandidateHost(t, &CandidateHostConfig{Network: "udp", Address: "10.0.0.1", Port: 40000})
	srflx := mustCandidateSrflx(t, &CandidateServerReflexiveConfig{
		Network: "udp", Address: "1.2.3.4", Port: 40001,
		RelAddr: "10.0.0.1", RelPort: 40000,
	})
	remote := mustCandidateHost(t, &CandidateHostConfig{Network: "udp", Address: "10.0.0.2", Port: 50000})

	low := cl.insert(newCandidatePair(1, srflx, remote, true))
	low.state = CandidatePairStateInProgress

	cl.insert(newCandidatePair(2, host, remote, true))

	// The redundant pair already has a check in flight and must survive.
	assert.Equal(t, 2, cl.len())
}

func TestChecklistOrderAndBest(t *testing.T) {
	cl := newTestChecklist()

	srflxPair := func(id uint64, port int) *CandidatePair {
		s := mustCandidateSrflx(t, &CandidateServerReflexiveConfig{
			Network: "udp", Address: "1.2.3.4", Port: port,
			RelAddr: "10.0.0.1", RelPort: port,
		})
		remote := mustCandidateHost(t, &CandidateHostConfig{Network: "udp", Address: "10.0.0.2", Port: 50000})
		return newCandidatePair(id, s, remote, true)
	}

	hp := cl.insert(hostPair(t, 1, "10.0.0.1", 40000, "10.0.0.2", 50000))
	sp := cl.insert(srflxPair(2, 40500))

	require.Equal(t, 2, cl.len())
	assert.Greater(t, hp.priority(), sp.priority())
	assert.Same(t, hp, cl.all()[0])

	assert.Same(t, hp, cl.best(CandidatePairStateWaiting))

	hp.state = CandidatePairStateSucceeded
	sp.state = CandidatePairStateWaiting
	assert.Same(t, sp, cl.best(CandidatePairStateWaiting))
	assert.Same(t, hp, cl.best(CandidatePairStateSucceeded))
	assert.Nil(t, cl.best(CandidatePairStateFailed))
}

func TestChecklistUnfreeze(t *testing.T) {
	cl := newTestChecklist()

	first := cl.insert(hostPair(t, 1, "10.0.0.1", 40000, "10.0.0.2", 50000))
	second := cl.insert(hostPair(t, 2, "10.0.0.1", 41000, "10.0.0.2", 51000))
	require.Equal(t, CandidatePairStateFrozen, second.state)

	cl.unfreeze(first.foundationKey())
	assert.Equal(t, CandidatePairStateWaiting, second.state)
}

func TestChecklistAllFailed(t *testing.T) {
	cl := newTestChecklist()
	assert.False(t, cl.allFailed(), "empty checklist has not failed")

	p := cl.insert(hostPair(t, 1, "10.0.0.1", 40000, "10.0.0.2", 50000))
	assert.False(t, cl.allFailed())

	p.state = CandidatePairStateFailed
	assert.True(t, cl.allFailed())
}

func TestChecklistValidPairFor(t *testing.T) {
	cl := newTestChecklist()

	check := cl.insert(hostPair(t, 1, "10.0.0.1", 40000, "10.0.0.2", 50000))

	prflx := mustCandidatePrflx(t, &CandidatePeerReflexiveConfig{
		Network: "udp", Address: "1.2.3.4", Port: 40001,
		RelAddr: "10.0.0.1", RelPort: 40000,
	})
	valid := newCandidatePair(2, prflx, check.Remote, true)
	valid.state = CandidatePairStateSucceeded
	valid.valid = true
	valid.discoveredPairID = check.id
	cl.append(valid)

	assert.Same(t, valid, cl.validPairFor(check))

	check.valid = true
	assert.Same(t, check, cl.validPairFor(check))
}

func TestChecklistSetControlling(t *testing.T) {
	cl := newTestChecklist()
	p := cl.insert(hostPair(t, 1, "10.0.0.1", 40000, "10.0.0.2", 50000))
	require.True(t, p.controlling)

	before := p.priority()
	cl.setControlling(false)
	assert.False(t, p.controlling)
	// Host-to-host pairs have symmetric candidate priorities here, so the
	// numeric value holds; the orientation flipped regardless.
	assert.Equal(t, before, p.priority())
}
