package ice

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pion/stun"
)

// gatherTransaction is one plain Binding request to a STUN server, asking
// for the mapped address of one host candidate.
type gatherTransaction struct {
	id         [stun.TransactionIDSize]byte
	host       Candidate
	server     *URL
	serverAddr net.Addr

	raw      []byte
	attempts int
	schedule backoff.BackOff
	timer    *time.Timer
}

// gatherCandidates enumerates host candidates and queues one gathering
// transaction per (STUN server, host candidate) of matching family. Runs on
// the taskLoop as part of Run.
func (a *Agent) gatherCandidates() {
	a.gatheringState = GatheringStateGathering

	a.gatherHostCandidates()
	a.enqueueGatherTransactions()
	a.checkGatheringComplete()
}

func (a *Agent) gatherHostCandidates() {
	defer func() { a.hostsGathered = true }()

	ifcs, err := a.net.Interfaces()
	if err != nil {
		a.log.Warnf("failed to enumerate interfaces: %v", err)
		return
	}

	for _, ifc := range ifcs {
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch typed := addr.(type) {
			case *net.IPNet:
				ip = typed.IP
			case *net.IPAddr:
				ip = typed.IP
			default:
				continue
			}

			if ip == nil || ip.IsLoopback() || ip.IsUnspecified() {
				continue
			}
			if !a.wantsFamilyOf(ip) {
				continue
			}
			if a.ipFilter != nil && !a.ipFilter(ip) {
				continue
			}

			conn, err := a.net.ListenUDP(udp, &net.UDPAddr{IP: ip, Port: 0})
			if err != nil {
				a.log.Warnf("could not listen on %s: %v", ip, err)
				continue
			}
			laddr, ok := conn.LocalAddr().(*net.UDPAddr)
			if !ok {
				_ = conn.Close()
				continue
			}

			host, err := NewCandidateHost(&CandidateHostConfig{
				Network: udp,
				Address: ip.String(),
				Port:    laddr.Port,
			})
			if err != nil {
				a.log.Warnf("failed to create host candidate for %s: %v", laddr, err)
				_ = conn.Close()
				continue
			}

			host.start(a, conn)
			a.log.Debugf("gathered host candidate %s", host)
			a.addLocalCandidate(host, true)
		}
	}
}

func (a *Agent) wantsFamilyOf(ip net.IP) bool {
	for _, nt := range a.networkTypes {
		if nt.IsIPv4() == (ip.To4() != nil) {
			return true
		}
	}
	return false
}

func (a *Agent) enqueueGatherTransactions() {
	for _, u := range a.urls {
		serverAddr, err := a.net.ResolveUDPAddr(udp, net.JoinHostPort(u.Host, strconv.Itoa(u.Port)))
		if err != nil {
			a.log.Warnf("failed to resolve STUN server %s: %v", u, err)
			continue
		}
		_, _, serverNt, ok := parseAddr(serverAddr)
		if !ok {
			a.log.Warnf("failed to parse STUN server address %s", serverAddr)
			continue
		}

		for _, c := range a.localCandidates {
			if c.Type() != CandidateTypeHost || c.NetworkType() != serverNt {
				continue
			}
			a.gatherQueue = append(a.gatherQueue, &gatherTransaction{
				host:       c,
				server:     u,
				serverAddr: serverAddr,
			})
		}
	}
}

// advanceGathering starts at most one queued gathering transaction,
// honouring the Ta pacing. Reports whether the tick was consumed.
func (a *Agent) advanceGathering() bool {
	for len(a.gatherQueue) > 0 {
		t := a.gatherQueue[0]
		a.gatherQueue = a.gatherQueue[1:]
		if err := a.startGatherTransaction(t); err != nil {
			a.log.Warnf("failed to query %s via %s: %v", t.server, t.host, err)
			a.checkGatheringComplete()
			continue
		}
		return true
	}
	return false
}

func (a *Agent) startGatherTransaction(t *gatherTransaction) error {
	// Gathering requests are plain RFC 5389 Bindings: no credentials exist
	// between us and the server, so no USERNAME or MESSAGE-INTEGRITY.
	req, err := stun.Build(stun.BindingRequest, stun.TransactionID)
	if err != nil {
		return err
	}

	t.id = req.TransactionID
	t.raw = req.Raw
	t.schedule = newRetransmitSchedule(a.rto)
	a.gatherTransactions[t.id] = t

	if _, err := t.host.writeTo(req.Raw, t.serverAddr); err != nil {
		delete(a.gatherTransactions, t.id)
		return err
	}

	a.log.Debugf("querying %s from %s (txid %x)", t.server, t.host, t.id)
	a.armGatherTimer(t, t.schedule.NextBackOff())
	return nil
}

func (a *Agent) armGatherTimer(t *gatherTransaction, d time.Duration) {
	id := t.id
	t.timer = time.AfterFunc(d, func() {
		if err := a.run(a.context(), func(_ context.Context, agent *Agent) {
			agent.onGatherTimer(id)
		}); err != nil {
			a.log.Tracef("gather timer for %x stopped: %v", id, err)
		}
	})
}

func (a *Agent) onGatherTimer(id [stun.TransactionIDSize]byte) {
	t, ok := a.gatherTransactions[id]
	if !ok {
		return
	}

	if t.attempts < a.maxRetransmissions {
		t.attempts++
		if _, err := t.host.writeTo(t.raw, t.serverAddr); err != nil {
			a.log.Warnf("failed to retransmit to %s: %v", t.server, err)
		}
		next := t.schedule.NextBackOff()
		if t.attempts == a.maxRetransmissions {
			next = a.rto * finalRetransmissionFactor
		}
		a.armGatherTimer(t, next)
		return
	}

	delete(a.gatherTransactions, id)
	a.log.Warnf("STUN server %s did not answer %s", t.server, t.host)
	a.checkGatheringComplete()
}

// handleGatherResponse turns a server's mapped address into a
// server-reflexive candidate on the host's socket.
func (a *Agent) handleGatherResponse(t *gatherTransaction, m *stun.Message) {
	if t.timer != nil {
		t.timer.Stop()
	}
	delete(a.gatherTransactions, t.id)
	defer a.checkGatheringComplete()

	var mapped stun.XORMappedAddress
	if err := mapped.GetFrom(m); err != nil {
		a.log.Warnf("response from %s carries no XOR-MAPPED-ADDRESS: %v", t.server, err)
		return
	}

	srflx, err := NewCandidateServerReflexive(&CandidateServerReflexiveConfig{
		Network: udp,
		Address: mapped.IP.String(),
		Port:    mapped.Port,
		RelAddr: t.host.Address(),
		RelPort: t.host.Port(),
		Server:  t.server.String(),
	})
	if err != nil {
		a.log.Warnf("failed to create server-reflexive candidate for %s: %v", mapped, err)
		return
	}

	srflx.shareConn(a, t.host.socket())
	a.log.Debugf("gathered server-reflexive candidate %s", srflx)
	a.addLocalCandidate(srflx, true)
}

// checkGatheringComplete fires the terminal nil candidate once host
// enumeration finished and no gathering transaction is queued or pending.
func (a *Agent) checkGatheringComplete() {
	if a.gatheringState != GatheringStateGathering {
		return
	}
	if !a.hostsGathered || len(a.gatherQueue) > 0 || len(a.gatherTransactions) > 0 {
		return
	}

	a.gatheringState = GatheringStateComplete
	a.log.Infof("gathering complete, %d local candidates", len(a.localCandidates))
	a.chanCandidate <- nil
}
