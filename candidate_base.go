package ice

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pion/stun"
)

type candidateBase struct {
	id            string
	networkType   NetworkType
	candidateType CandidateType

	component   uint16
	address     string
	port        int
	baseAddress string
	basePort    int

	// relatedServer groups server-reflexive candidates from the same STUN
	// server into one foundation.
	relatedServer string

	foundationOverride string
	priorityOverride   uint32

	lastSent     atomic.Value
	lastReceived atomic.Value

	currAgent *Agent
	conn      net.PacketConn
	ownsConn  bool

	closedCh chan struct{}
}

// ID returns candidate ID
func (c *candidateBase) ID() string {
	return c.id
}

// Foundation returns the candidate foundation: an identical token for
// candidates of one type from one base (and one server, for reflexive ones).
func (c *candidateBase) Foundation() string {
	if c.foundationOverride != "" {
		return c.foundationOverride
	}
	return fmt.Sprintf("%d", crc32.ChecksumIEEE([]byte(c.Type().String()+c.baseAddress+c.networkType.String()+c.relatedServer)))
}

// Component returns candidate component
func (c *candidateBase) Component() uint16 {
	return c.component
}

// NetworkType returns candidate NetworkType
func (c *candidateBase) NetworkType() NetworkType {
	return c.networkType
}

// Address returns candidate address
func (c *candidateBase) Address() string {
	return c.address
}

// Port returns candidate port
func (c *candidateBase) Port() int {
	return c.port
}

// BaseAddress returns the address of the socket this candidate sends from
func (c *candidateBase) BaseAddress() string {
	return c.baseAddress
}

// BasePort returns the port of the socket this candidate sends from
func (c *candidateBase) BasePort() int {
	return c.basePort
}

// Type returns candidate type
func (c *candidateBase) Type() CandidateType {
	return c.candidateType
}

// Priority computes the candidate priority (RFC 8445 5.1.2.1) unless the
// candidate carries a priority learned from the wire.
func (c *candidateBase) Priority() uint32 {
	if c.priorityOverride != 0 {
		return c.priorityOverride
	}
	return (1<<24)*uint32(c.Type().preference()) +
		(1<<8)*uint32(defaultLocalPreference) +
		(256 - uint32(c.Component()))
}

// LastReceived returns the last time this candidate received traffic
func (c *candidateBase) LastReceived() time.Time {
	if lr, ok := c.lastReceived.Load().(time.Time); ok {
		return lr
	}
	return time.Time{}
}

// LastSent returns the last time this candidate sent traffic
func (c *candidateBase) LastSent() time.Time {
	if ls, ok := c.lastSent.Load().(time.Time); ok {
		return ls
	}
	return time.Time{}
}

func (c *candidateBase) seen(outbound bool) {
	if outbound {
		c.lastSent.Store(time.Now())
	} else {
		c.lastReceived.Store(time.Now())
	}
}

func (c *candidateBase) addr() net.Addr {
	return &net.UDPAddr{IP: net.ParseIP(c.address), Port: c.port}
}

func (c *candidateBase) agent() *Agent {
	return c.currAgent
}

func (c *candidateBase) socket() net.PacketConn {
	return c.conn
}

// start attaches the candidate to its agent as the owner of conn and begins
// reading from the socket.
func (c *candidateBase) start(a *Agent, conn net.PacketConn) {
	c.currAgent = a
	c.conn = conn
	c.ownsConn = true
	c.closedCh = make(chan struct{})

	go c.recvLoop()
}

// shareConn attaches a derived candidate to the socket of the host candidate
// it was discovered through. The owner keeps running the read loop.
func (c *candidateBase) shareConn(a *Agent, conn net.PacketConn) {
	c.currAgent = a
	c.conn = conn
	c.ownsConn = false
}

func (c *candidateBase) recvLoop() {
	a := c.agent()
	defer close(c.closedCh)

	buf := make([]byte, receiveMTU)
	for {
		n, srcAddr, err := c.conn.ReadFrom(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.EOF) {
				a.log.Warnf("failed to read from candidate %s: %v", c, err)
			}
			return
		}
		c.handleInboundPacket(buf[:n], srcAddr)
	}
}

func (c *candidateBase) handleInboundPacket(buf []byte, srcAddr net.Addr) {
	a := c.agent()

	if stun.IsMessage(buf) {
		m := &stun.Message{Raw: make([]byte, len(buf))}
		copy(m.Raw, buf)
		if err := m.Decode(); err != nil {
			a.log.Warnf("failed to handle decode ICE from %s to %s: %v", srcAddr, c.addr(), err)
			return
		}
		if err := a.run(a.context(), func(_ context.Context, agent *Agent) {
			agent.handleInbound(m, c, srcAddr)
		}); err != nil {
			a.log.Warnf("failed to handle message: %v", err)
		}
		return
	}

	if !a.validateNonSTUNTraffic(c, srcAddr) {
		a.log.Warnf("discarded message from %s, not a valid remote candidate", srcAddr)
		return
	}

	// Note: This will return the length of the packet written to the
	// buffer, not an error on overflow. Packets are dropped silently once
	// the buffer limit is hit.
	if _, err := a.buf.Write(buf); err != nil {
		a.log.Warnf("failed to write packet: %v", err)
	}
}

// writeTo sends raw through the candidate's socket. Transient send errors
// are retried a bounded number of times; a packet that still cannot be sent
// is dropped with a warning and left to the retransmission schedule.
func (c *candidateBase) writeTo(raw []byte, dst net.Addr) (int, error) {
	n, err := c.conn.WriteTo(raw, dst)
	for attempt := 1; err != nil && attempt < maxSendAttempts; attempt++ {
		if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
			return n, err
		}
		time.Sleep(sendRetryInterval)
		n, err = c.conn.WriteTo(raw, dst)
	}
	if err != nil {
		c.agent().log.Warnf("%v: %v", errSendPacket, err)
		return n, nil
	}
	c.seen(true)
	return n, nil
}

func (c *candidateBase) close() error {
	if !c.ownsConn || c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	<-c.closedCh
	return err
}

func (c *candidateBase) String() string {
	s := fmt.Sprintf("%s %s %s:%d", c.NetworkType(), c.Type(), c.Address(), c.Port())
	if c.Type() != CandidateTypeHost {
		s += fmt.Sprintf(" related %s:%d", c.BaseAddress(), c.BasePort())
	}
	return s
}

// Equal reports whether two candidates name the same transport address from
// the same base.
func (c *candidateBase) Equal(other Candidate) bool {
	return c.Type() == other.Type() &&
		c.Address() == other.Address() &&
		c.Port() == other.Port() &&
		c.BaseAddress() == other.BaseAddress() &&
		c.BasePort() == other.BasePort()
}

// Marshal returns the candidate-attribute line without the "a=candidate:"
// framing:
//
//	foundation component transport priority address port typ type [raddr addr rport port]
func (c *candidateBase) Marshal() string {
	val := fmt.Sprintf("%s %d %s %d %s %d typ %s",
		c.Foundation(),
		c.Component(),
		c.NetworkType().NetworkShort(),
		c.Priority(),
		c.Address(),
		c.Port(),
		c.Type())

	if c.Type() == CandidateTypeServerReflexive ||
		c.Type() == CandidateTypePeerReflexive ||
		c.Type() == CandidateTypeRelay {
		val += fmt.Sprintf(" raddr %s rport %d", c.BaseAddress(), c.BasePort())
	}

	return val
}

// UnmarshalCandidate parses one candidate-attribute line. Trailing key/value
// extensions are ignored. Only UDP candidates are accepted.
func UnmarshalCandidate(raw string) (Candidate, error) {
	split := strings.Fields(raw)
	if len(split) < 8 {
		return nil, fmt.Errorf("%w: not enough fields (%d)", ErrCandidateLine, len(split))
	}

	foundation := split[0]

	rawComponent, err := strconv.ParseUint(split[1], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errParseComponent, err)
	}
	component := uint16(rawComponent)

	protocol := strings.ToLower(split[2])
	if protocol != udp {
		return nil, fmt.Errorf("%w (%s)", ErrProtoType, protocol)
	}

	priorityRaw, err := strconv.ParseUint(split[3], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errParsePriority, err)
	}
	priority := uint32(priorityRaw)

	address := split[4]

	rawPort, err := strconv.ParseUint(split[5], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errParsePort, err)
	}
	port := int(rawPort)

	if split[6] != "typ" {
		return nil, fmt.Errorf("%w: missing typ", ErrCandidateLine)
	}
	typ, err := unmarshalCandidateType(split[7])
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, split[7])
	}

	relatedAddress := ""
	relatedPort := 0
	if len(split) > 8 && split[8] == "raddr" {
		if len(split) < 12 || split[10] != "rport" {
			return nil, fmt.Errorf("%w: incorrect length", errParseRelatedAddr)
		}
		relatedAddress = split[9]
		rawRelatedPort, parseErr := strconv.ParseUint(split[11], 10, 16)
		if parseErr != nil {
			return nil, fmt.Errorf("%w: %v", errParsePort, parseErr)
		}
		relatedPort = int(rawRelatedPort)
	}

	switch typ {
	case CandidateTypeHost:
		return NewCandidateHost(&CandidateHostConfig{
			Network:    protocol,
			Address:    address,
			Port:       port,
			Component:  component,
			Priority:   priority,
			Foundation: foundation,
		})
	case CandidateTypeServerReflexive:
		return NewCandidateServerReflexive(&CandidateServerReflexiveConfig{
			Network:    protocol,
			Address:    address,
			Port:       port,
			Component:  component,
			Priority:   priority,
			Foundation: foundation,
			RelAddr:    relatedAddress,
			RelPort:    relatedPort,
		})
	case CandidateTypePeerReflexive:
		return NewCandidatePeerReflexive(&CandidatePeerReflexiveConfig{
			Network:    protocol,
			Address:    address,
			Port:       port,
			Component:  component,
			Priority:   priority,
			Foundation: foundation,
			RelAddr:    relatedAddress,
			RelPort:    relatedPort,
		})
	case CandidateTypeRelay:
		return NewCandidateRelay(&CandidateRelayConfig{
			Network:    protocol,
			Address:    address,
			Port:       port,
			Component:  component,
			Priority:   priority,
			Foundation: foundation,
			RelAddr:    relatedAddress,
			RelPort:    relatedPort,
		})
	default:
	}

	return nil, fmt.Errorf("%w (%s)", ErrUnknownCandidateType, split[7])
}
