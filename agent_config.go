package ice

import (
	"net"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v2"
	"github.com/pion/transport/v2/stdnet"
)

// AgentConfig collects the options for NewAgent. Zero values select the
// defaults documented on each field.
type AgentConfig struct {
	// Role is required. Exactly one side of the session must be
	// controlling.
	Role Role

	// Urls is the list of STUN servers used to gather server-reflexive
	// candidates. TURN URLs parse but are rejected: this agent does not
	// allocate relays.
	Urls []*URL

	// NetworkTypes restricts the address families candidates are gathered
	// for. Defaults to UDP4 and UDP6.
	NetworkTypes []NetworkType

	// IPFilter selects which interface addresses become host candidates.
	// Loopback addresses are always skipped; nil accepts everything else.
	IPFilter func(net.IP) bool

	// Net is the socket factory. Defaults to the standard network stack;
	// tests inject a virtual one.
	Net transport.Net

	LoggerFactory logging.LoggerFactory

	// Ta is the pacing interval between agent actions: one connectivity
	// check or one gathering transaction per tick. Defaults to 50ms.
	Ta time.Duration

	// RTO is the initial STUN retransmission timeout. Defaults to 500ms.
	RTO time.Duration

	// MaxRetransmissions is the number of retransmissions after the
	// initial request before a transaction times out. Defaults to 6.
	MaxRetransmissions int

	// KeepaliveInterval is how often the selected pair is refreshed with a
	// Binding request once checking concluded. Defaults to 2s.
	KeepaliveInterval time.Duration

	// DisconnectedTimeout is how long the selected pair may stay silent
	// before the connection is reported disconnected. Defaults to 5s.
	DisconnectedTimeout time.Duration

	// FailedTimeout is how long the selected pair may stay silent before
	// the connection is reported failed. Defaults to 25s.
	FailedTimeout time.Duration

	// TieBreaker is the 64-bit value carried in ICE-CONTROLLING and
	// ICE-CONTROLLED. Zero generates a random one; fixed values are for
	// tests only, equal tie-breakers make role conflicts unresolvable.
	TieBreaker uint64
}

func (config *AgentConfig) initWithDefaults(a *Agent) error {
	if config.Ta == 0 {
		a.ta = defaultTaInterval
	} else {
		a.ta = config.Ta
	}

	if config.RTO == 0 {
		a.rto = defaultRTO
	} else {
		a.rto = config.RTO
	}

	if config.MaxRetransmissions == 0 {
		a.maxRetransmissions = defaultMaxRetransmissions
	} else {
		a.maxRetransmissions = config.MaxRetransmissions
	}

	if config.KeepaliveInterval == 0 {
		a.keepaliveInterval = defaultKeepaliveInterval
	} else {
		a.keepaliveInterval = config.KeepaliveInterval
	}

	if config.DisconnectedTimeout == 0 {
		a.disconnectedTimeout = defaultDisconnectedTimeout
	} else {
		a.disconnectedTimeout = config.DisconnectedTimeout
	}

	if config.FailedTimeout == 0 {
		a.failedTimeout = defaultFailedTimeout
	} else {
		a.failedTimeout = config.FailedTimeout
	}

	if config.TieBreaker == 0 {
		a.tieBreaker = generateTieBreaker()
	} else {
		a.tieBreaker = config.TieBreaker
	}

	if len(config.NetworkTypes) == 0 {
		a.networkTypes = []NetworkType{NetworkTypeUDP4, NetworkTypeUDP6}
	} else {
		a.networkTypes = append([]NetworkType{}, config.NetworkTypes...)
	}

	a.ipFilter = config.IPFilter

	// Only STUN URLs can be acted on; anything else in the list would sit
	// there unused until gathering failed, so reject it up front.
	for _, u := range config.Urls {
		if u == nil {
			continue
		}
		if u.Scheme != SchemeTypeSTUN {
			a.log.Warnf("dropping unsupported server %s, only stun: is usable for gathering", u)
			continue
		}
		a.urls = append(a.urls, u)
	}

	if config.Net == nil {
		n, err := stdnet.NewNet()
		if err != nil {
			return err
		}
		a.net = n
	} else {
		a.net = config.Net
	}

	return nil
}
