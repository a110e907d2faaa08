package ice

import (
	"net"
	"time"
)

const (
	receiveMTU = 8192

	defaultLocalPreference = 65535

	// ComponentRTP is the only component this agent drives; a single
	// checklist carries the session.
	ComponentRTP uint16 = 1

	// Datagram sends that fail with a transient error are retried a bounded
	// number of times before the packet is dropped. Retransmissions recover
	// the transaction if the drop mattered.
	maxSendAttempts   = 10
	sendRetryInterval = 20 * time.Millisecond
)

// Candidate represents an ICE candidate
type Candidate interface {
	// An arbitrary string used in the freezing algorithm to group similar
	// candidates. It is the same for two candidates of the same type from
	// the same base and, for server-reflexive ones, the same STUN server.
	Foundation() string

	// ID is a unique identifier for just this candidate, unlike the
	// foundation which groups candidates.
	ID() string

	// A component is a piece of a data stream. This agent always uses
	// component 1.
	Component() uint16

	// LastReceived returns the last time traffic arrived from this
	// candidate's address.
	LastReceived() time.Time

	// LastSent returns the last time traffic was sent through this
	// candidate.
	LastSent() time.Time

	NetworkType() NetworkType
	Address() string
	Port() int

	// BaseAddress and BasePort name the local socket traffic for this
	// candidate actually uses. Equal to Address/Port for host candidates;
	// reflexive candidates answer through the socket of the host candidate
	// they were derived from.
	BaseAddress() string
	BasePort() int

	Priority() uint32
	Type() CandidateType
	String() string

	// Equal is used for deduplication: two candidates are the same when
	// their type, transport address and base agree.
	Equal(other Candidate) bool

	// Marshal returns the candidate-attribute line for signalling.
	Marshal() string

	addr() net.Addr
	agent() *Agent

	// socket is the packet connection shared by a host candidate and the
	// reflexive candidates derived from it.
	socket() net.PacketConn

	writeTo(raw []byte, dst net.Addr) (int, error)
	close() error
	seen(outbound bool)
}

// peerReflexivePriority is the priority this candidate would have as a
// peer-reflexive candidate, carried in the PRIORITY attribute of every
// outbound check (RFC 8445 7.1.1).
func peerReflexivePriority(c Candidate) uint32 {
	return (1<<24)*uint32(CandidateTypePeerReflexive.preference()) +
		(1<<8)*uint32(defaultLocalPreference) +
		(256 - uint32(c.Component()))
}
