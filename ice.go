// Package ice implements Interactive Connectivity Establishment (RFC 8445)
// over UDP: candidate gathering, checklist scheduling, STUN connectivity
// checks and role-dependent nomination of a selected candidate pair.
package ice

import "time"

const (
	// defaultTaInterval is the pacing interval between agent actions.
	// Each tick issues at most one connectivity check or advances one
	// gathering transaction.
	defaultTaInterval = 50 * time.Millisecond

	// defaultRTO is the initial STUN retransmission timeout (RFC 5389 7.2.1).
	defaultRTO = 500 * time.Millisecond

	// defaultMaxRetransmissions is the number of retransmissions after the
	// initial request. The transaction fails RTO*16 after the last one.
	defaultMaxRetransmissions = 6

	finalRetransmissionFactor = 16

	defaultKeepaliveInterval   = 2 * time.Second
	defaultDisconnectedTimeout = 5 * time.Second
	defaultFailedTimeout       = 25 * time.Second
)

// ConnectionState is the state of the connectivity establishment conducted
// by an Agent.
type ConnectionState int

const (
	// ConnectionStateNew means the agent has been constructed but checks
	// have not started.
	ConnectionStateNew ConnectionState = iota + 1

	// ConnectionStateChecking means the agent is sending or answering
	// connectivity checks and no pair has been validated yet.
	ConnectionStateChecking

	// ConnectionStateConnected means at least one candidate pair has been
	// validated.
	ConnectionStateConnected

	// ConnectionStateCompleted means nomination finished and a pair has
	// been selected.
	ConnectionStateCompleted

	// ConnectionStateDisconnected means the selected pair stopped receiving
	// traffic; the agent may still recover.
	ConnectionStateDisconnected

	// ConnectionStateFailed means no usable candidate pair exists and the
	// agent stopped issuing checks.
	ConnectionStateFailed

	// ConnectionStateClosed means the agent was closed by the application.
	ConnectionStateClosed
)

func (c ConnectionState) String() string {
	switch c {
	case ConnectionStateNew:
		return "New"
	case ConnectionStateChecking:
		return "Checking"
	case ConnectionStateConnected:
		return "Connected"
	case ConnectionStateCompleted:
		return "Completed"
	case ConnectionStateDisconnected:
		return "Disconnected"
	case ConnectionStateFailed:
		return "Failed"
	case ConnectionStateClosed:
		return "Closed"
	default:
		return "Invalid"
	}
}

// GatheringState describes the current candidate gathering phase.
type GatheringState int

const (
	// GatheringStateNew means gathering has not started.
	GatheringStateNew GatheringState = iota + 1

	// GatheringStateGathering means host enumeration or server-reflexive
	// transactions are still running.
	GatheringStateGathering

	// GatheringStateComplete means every local candidate has been announced.
	GatheringStateComplete
)

func (t GatheringState) String() string {
	switch t {
	case GatheringStateNew:
		return "new"
	case GatheringStateGathering:
		return "gathering"
	case GatheringStateComplete:
		return "complete"
	default:
		return "unknown"
	}
}
