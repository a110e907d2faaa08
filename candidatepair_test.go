package ice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidatePairPriority(t *testing.T) {
	host := mustCandidateHost(t, &CandidateHostConfig{Network: "udp", Address: "10.0.0.1", Port: 40000})
	srflx := mustCandidateSrflx(t, &CandidateServerReflexiveConfig{
		Network: "udp", Address: "1.2.3.4", Port: 5000,
		RelAddr: "10.0.0.1", RelPort: 40000,
	})

	// Both agents must compute the same priority for the same underlying
	// pair, whichever side of it they hold.
	controlling := newCandidatePair(1, host, srflx, true)
	controlled := newCandidatePair(1, srflx, host, false)
	assert.Equal(t, controlling.priority(), controlled.priority())

	g := uint64(host.Priority())
	d := uint64(srflx.Priority())
	expected := (1<<32)*d + 2*g + 1 // G > D here
	assert.Equal(t, expected, controlling.priority())

	// Symmetric pair: G == D, no tiebreak bit.
	host2 := mustCandidateHost(t, &CandidateHostConfig{Network: "udp", Address: "10.0.0.2", Port: 50000})
	same := newCandidatePair(2, host, host2, true)
	assert.Equal(t, (1<<32)*uint64(host.Priority())+2*uint64(host2.Priority()), same.priority())
}

func TestCandidatePairEqual(t *testing.T) {
	local := mustCandidateHost(t, &CandidateHostConfig{Network: "udp", Address: "10.0.0.1", Port: 40000})
	remote := mustCandidateHost(t, &CandidateHostConfig{Network: "udp", Address: "10.0.0.2", Port: 50000})
	otherRemote := mustCandidateHost(t, &CandidateHostConfig{Network: "udp", Address: "10.0.0.2", Port: 50001})

	a := newCandidatePair(1, local, remote, true)
	b := newCandidatePair(2, local, remote, false)
	c := newCandidatePair(3, local, otherRemote, true)

	// Equality is over the candidates only; id, role and state are not
	// part of the dedup key.
	assert.True(t, a.equal(b))
	assert.False(t, a.equal(c))
	assert.False(t, a.equal(nil))

	var nilPair *CandidatePair
	assert.True(t, nilPair.equal(nil))
}

func TestCandidatePairFoundationKey(t *testing.T) {
	local := mustCandidateHost(t, &CandidateHostConfig{Network: "udp", Address: "10.0.0.1", Port: 40000})
	local2 := mustCandidateHost(t, &CandidateHostConfig{Network: "udp", Address: "10.0.0.1", Port: 41000})
	remote := mustCandidateHost(t, &CandidateHostConfig{Network: "udp", Address: "10.0.0.2", Port: 50000})

	a := newCandidatePair(1, local, remote, true)
	b := newCandidatePair(2, local2, remote, true)
	assert.Equal(t, a.foundationKey(), b.foundationKey())
}
