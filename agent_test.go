package ice

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pion/transport/v2/vnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runOnAgent executes fn on the agent's task loop and waits for it.
func runOnAgent(t *testing.T, a *Agent, fn func(*Agent)) {
	t.Helper()
	require.NoError(t, a.run(context.Background(), func(_ context.Context, agent *Agent) {
		fn(agent)
	}))
}

// waitForAgent polls cond on the task loop until it holds.
func waitForAgent(t *testing.T, a *Agent, cond func(*Agent) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		var ok bool
		if err := a.run(context.Background(), func(_ context.Context, agent *Agent) {
			ok = cond(agent)
		}); err != nil {
			return false
		}
		return ok
	}, 5*time.Second, 10*time.Millisecond)
}

func mustVNet(t *testing.T) *vnet.Net {
	t.Helper()
	n, err := vnet.NewNet(&vnet.NetConfig{})
	require.NoError(t, err)
	return n
}

func TestNewAgentRequiresRole(t *testing.T) {
	_, err := NewAgent(&AgentConfig{})
	assert.ErrorIs(t, err, ErrRoleMissing)

	_, err = NewAgent(&AgentConfig{Role: Role(42)})
	assert.ErrorIs(t, err, ErrRoleMissing)
}

func TestLocalUserCredentials(t *testing.T) {
	a, err := NewAgent(&AgentConfig{Role: RoleControlling, Net: mustVNet(t)})
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	ufrag, pwd, err := a.GetLocalUserCredentials()
	require.NoError(t, err)

	// 3 random bytes make 4 base64 chars, 16 make 22. Both must stay
	// within the ice-char alphabet.
	assert.Len(t, ufrag, 4)
	assert.Len(t, pwd, 22)
	for _, r := range ufrag + pwd {
		assert.True(t, strings.ContainsRune(runesCandidateIDFoundation, r), "credential rune %q", r)
	}

	b, err := NewAgent(&AgentConfig{Role: RoleControlling, Net: mustVNet(t)})
	require.NoError(t, err)
	defer func() { _ = b.Close() }()
	otherUfrag, otherPwd, err := b.GetLocalUserCredentials()
	require.NoError(t, err)
	assert.NotEqual(t, ufrag, otherUfrag)
	assert.NotEqual(t, pwd, otherPwd)
}

func TestSetRemoteCredentialsValidation(t *testing.T) {
	a, err := NewAgent(&AgentConfig{Role: RoleControlled, Net: mustVNet(t)})
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	assert.ErrorIs(t, a.SetRemoteCredentials("", "pwd"), ErrRemoteUfragEmpty)
	assert.ErrorIs(t, a.SetRemoteCredentials("ufrag", ""), ErrRemotePwdEmpty)
	assert.NoError(t, a.SetRemoteCredentials("ufrag", "pwd"))
}

func TestRunTwice(t *testing.T) {
	a, err := NewAgent(&AgentConfig{Role: RoleControlling, Net: mustVNet(t)})
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	require.NoError(t, a.Run())
	assert.ErrorIs(t, a.Run(), ErrMultipleStart)
}

func TestGatheringCompletesWithNil(t *testing.T) {
	// A vnet with no static IPs yields no usable interface addresses, so
	// gathering announces nothing and terminates immediately.
	a, err := NewAgent(&AgentConfig{Role: RoleControlling, Net: mustVNet(t)})
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	gathered := make(chan Candidate, 8)
	require.NoError(t, a.OnCandidate(func(c Candidate) {
		gathered <- c
	}))
	require.NoError(t, a.Run())

	select {
	case c := <-gathered:
		assert.Nil(t, c)
	case <-time.After(3 * time.Second):
		t.Fatal("gathering did not complete")
	}
}

func TestAddRemoteCandidate(t *testing.T) {
	a, err := NewAgent(&AgentConfig{Role: RoleControlling, Net: mustVNet(t)})
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	local := mustCandidateHost(t, &CandidateHostConfig{Network: "udp", Address: "10.0.0.1", Port: 40000})
	runOnAgent(t, a, func(agent *Agent) {
		agent.addLocalCandidate(local, false)
	})

	require.NoError(t, a.AddRemoteCandidate(mustCandidateHost(t, &CandidateHostConfig{
		Network: "udp", Address: "10.0.0.2", Port: 50000,
	})))
	// The same candidate again is a no-op.
	require.NoError(t, a.AddRemoteCandidate(mustCandidateHost(t, &CandidateHostConfig{
		Network: "udp", Address: "10.0.0.2", Port: 50000,
	})))
	// nil is tolerated.
	require.NoError(t, a.AddRemoteCandidate(nil))

	runOnAgent(t, a, func(agent *Agent) {
		assert.Len(t, agent.remoteCandidates, 1)
		assert.Equal(t, 1, agent.checklist.len())
	})
}

func TestAddRemoteCandidateFamilyMismatch(t *testing.T) {
	a, err := NewAgent(&AgentConfig{Role: RoleControlling, Net: mustVNet(t)})
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	local := mustCandidateHost(t, &CandidateHostConfig{Network: "udp", Address: "10.0.0.1", Port: 40000})
	runOnAgent(t, a, func(agent *Agent) {
		agent.addLocalCandidate(local, false)
	})

	// An IPv6 remote cannot pair with an IPv4 local.
	require.NoError(t, a.AddRemoteCandidate(mustCandidateHost(t, &CandidateHostConfig{
		Network: "udp", Address: "2001:db8::1", Port: 50000,
	})))

	runOnAgent(t, a, func(agent *Agent) {
		assert.Len(t, agent.remoteCandidates, 1)
		assert.Equal(t, 0, agent.checklist.len())
	})
}

func TestAgentClose(t *testing.T) {
	a, err := NewAgent(&AgentConfig{Role: RoleControlling, Net: mustVNet(t)})
	require.NoError(t, err)

	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Close(), ErrClosed)

	_, _, err = a.GetLocalUserCredentials()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, a.AddRemoteCandidate(mustCandidateHost(t, &CandidateHostConfig{
		Network: "udp", Address: "10.0.0.2", Port: 50000,
	})), ErrClosed)
}

func TestAgentStats(t *testing.T) {
	a, err := NewAgent(&AgentConfig{Role: RoleControlling, Net: mustVNet(t)})
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	local := mustCandidateHost(t, &CandidateHostConfig{Network: "udp", Address: "10.0.0.1", Port: 40000})
	runOnAgent(t, a, func(agent *Agent) {
		agent.addLocalCandidate(local, false)
	})
	require.NoError(t, a.AddRemoteCandidate(mustCandidateHost(t, &CandidateHostConfig{
		Network: "udp", Address: "10.0.0.2", Port: 50000,
	})))

	pairStats := a.GetCandidatePairsStats()
	require.Len(t, pairStats, 1)
	assert.Equal(t, CandidatePairStateWaiting, pairStats[0].State)
	assert.NotZero(t, pairStats[0].Priority)
	assert.False(t, pairStats[0].Nominated)

	candStats := a.GetLocalCandidatesStats()
	require.Len(t, candStats, 1)
	assert.Equal(t, "10.0.0.1", candStats[0].IP)
	assert.Equal(t, 40000, candStats[0].Port)
	assert.Equal(t, CandidateTypeHost, candStats[0].CandidateType)
	assert.Equal(t, NetworkTypeUDP4, candStats[0].NetworkType)
}

func TestControllingSelectorRegularNomination(t *testing.T) {
	a, err := NewAgent(&AgentConfig{Role: RoleControlling, Net: mustVNet(t)})
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	local := mustCandidateHost(t, &CandidateHostConfig{Network: "udp", Address: "10.0.0.1", Port: 40000})
	runOnAgent(t, a, func(agent *Agent) {
		agent.addLocalCandidate(local, false)
		agent.addRemoteCandidate(mustCandidateHost(t, &CandidateHostConfig{
			Network: "udp", Address: "10.0.0.2", Port: 50000,
		}))

		p := agent.checklist.all()[0]
		p.state = CandidatePairStateSucceeded
		p.valid = true

		// The checklist settled: the best succeeded pair is queued for a
		// nominating re-check.
		agent.selector.contactCandidates()
		assert.True(t, p.nominate)
		assert.Equal(t, CandidatePairStateWaiting, p.state)

		// The nominating check succeeded.
		p.state = CandidatePairStateSucceeded
		agent.selector.handleCheckSuccess(p, p, true)
		assert.True(t, p.nominated)
		assert.Same(t, p, agent.getSelectedPair())
	})
}

func TestControlledSelectorDefersNomination(t *testing.T) {
	a, err := NewAgent(&AgentConfig{Role: RoleControlled, Net: mustVNet(t)})
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	local := mustCandidateHost(t, &CandidateHostConfig{Network: "udp", Address: "10.0.0.1", Port: 40000})
	runOnAgent(t, a, func(agent *Agent) {
		agent.addLocalCandidate(local, false)
		agent.addRemoteCandidate(mustCandidateHost(t, &CandidateHostConfig{
			Network: "udp", Address: "10.0.0.2", Port: 50000,
		}))
		p := agent.checklist.all()[0]

		// USE-CANDIDATE arrived before our own check on the pair
		// completed: remember the nomination, do not select yet.
		agent.selector.handleBindingRequest(p, true)
		assert.True(t, p.nominate)
		assert.False(t, p.nominated)
		assert.Nil(t, agent.getSelectedPair())

		// Our check completes later; the deferred nomination applies.
		p.state = CandidatePairStateSucceeded
		p.valid = true
		agent.selector.handleCheckSuccess(p, p, false)
		assert.True(t, p.nominated)
		assert.Same(t, p, agent.getSelectedPair())
	})
}

func TestControlledSelectorNominatesDiscoveredPath(t *testing.T) {
	// The nominating request lands on the conn-check pair, but validation
	// lives on a peer-reflexive pair sharing the same socket and remote.
	// Nomination must resolve to that pair instead of waiting for a check
	// that will never run on the succeeded conn-check pair.
	a, err := NewAgent(&AgentConfig{Role: RoleControlled, Net: mustVNet(t)})
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	local := mustCandidateHost(t, &CandidateHostConfig{Network: "udp", Address: "10.0.0.1", Port: 40000})
	runOnAgent(t, a, func(agent *Agent) {
		agent.addLocalCandidate(local, false)
		agent.addRemoteCandidate(mustCandidateHost(t, &CandidateHostConfig{
			Network: "udp", Address: "10.0.0.2", Port: 50000,
		}))
		c := agent.checklist.all()[0]
		c.state = CandidatePairStateSucceeded

		prflx := mustCandidatePrflx(t, &CandidatePeerReflexiveConfig{
			Network: "udp", Address: "1.2.3.4", Port: 1234,
			RelAddr: "10.0.0.1", RelPort: 40000,
		})
		agent.nextPairID++
		v := newCandidatePair(agent.nextPairID, prflx, c.Remote, false)
		v.state = CandidatePairStateSucceeded
		v.valid = true
		agent.checklist.append(v)

		agent.selector.handleBindingRequest(c, true)
		assert.True(t, v.nominated)
		assert.Same(t, v, agent.getSelectedPair())
	})
}

func TestControlledSelectorNominatesSucceededPair(t *testing.T) {
	a, err := NewAgent(&AgentConfig{Role: RoleControlled, Net: mustVNet(t)})
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	local := mustCandidateHost(t, &CandidateHostConfig{Network: "udp", Address: "10.0.0.1", Port: 40000})
	runOnAgent(t, a, func(agent *Agent) {
		agent.addLocalCandidate(local, false)
		agent.addRemoteCandidate(mustCandidateHost(t, &CandidateHostConfig{
			Network: "udp", Address: "10.0.0.2", Port: 50000,
		}))
		p := agent.checklist.all()[0]
		p.state = CandidatePairStateSucceeded
		p.valid = true

		agent.selector.handleBindingRequest(p, true)
		assert.True(t, p.nominated)
		assert.Same(t, p, agent.getSelectedPair())

		// A retransmit of the nominating request changes nothing.
		agent.selector.handleBindingRequest(p, true)
		assert.Same(t, p, agent.getSelectedPair())
	})
}
