package ice

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/pion/stun"
)

// Connect blocks until nomination selected a candidate pair, then returns a
// Conn carrying application data over it. Run must have been called.
func (a *Agent) Connect(ctx context.Context) (*Conn, error) {
	if err := a.ok(); err != nil {
		return nil, err
	}

	select {
	case <-a.done:
		return nil, a.getErr()
	case <-ctx.Done():
		return nil, ErrCanceledByCaller
	case <-a.onFailed:
		return nil, ErrConnectionFailed
	case <-a.onConnected:
	}

	if a.getSelectedPair() == nil {
		return nil, a.getErr()
	}
	return &Conn{agent: a}, nil
}

// Conn is the UDP transport the agent negotiated: reads deliver every
// non-STUN datagram that arrived on local candidates, writes go out on the
// selected pair.
type Conn struct {
	bytesReceived uint64
	bytesSent     uint64
	agent         *Agent
}

// Read implements the net.Conn Read method.
func (c *Conn) Read(p []byte) (int, error) {
	if err := c.agent.ok(); err != nil {
		return 0, err
	}

	n, err := c.agent.buf.Read(p)
	atomic.AddUint64(&c.bytesReceived, uint64(n))
	return n, err
}

// Write implements the net.Conn Write method.
func (c *Conn) Write(p []byte) (int, error) {
	if err := c.agent.ok(); err != nil {
		return 0, err
	}

	if stun.IsMessage(p) {
		return 0, ErrWriteSTUNMessage
	}

	pair := c.agent.getSelectedPair()
	if pair == nil {
		return 0, ErrNoCandidatePairs
	}

	atomic.AddUint64(&c.bytesSent, uint64(len(p)))
	return pair.writeTo(p)
}

// Close implements the net.Conn Close method. It closes the owning agent;
// pending reads and writes unblock with an error.
func (c *Conn) Close() error {
	return c.agent.Close()
}

// BytesSent returns the number of payload bytes sent.
func (c *Conn) BytesSent() uint64 {
	return atomic.LoadUint64(&c.bytesSent)
}

// BytesReceived returns the number of payload bytes received.
func (c *Conn) BytesReceived() uint64 {
	return atomic.LoadUint64(&c.bytesReceived)
}

// LocalAddr returns the address of the selected pair's local candidate.
func (c *Conn) LocalAddr() net.Addr {
	pair := c.agent.getSelectedPair()
	if pair == nil {
		return nil
	}
	return pair.Local.addr()
}

// RemoteAddr returns the address of the selected pair's remote candidate.
func (c *Conn) RemoteAddr() net.Addr {
	pair := c.agent.getSelectedPair()
	if pair == nil {
		return nil
	}
	return pair.Remote.addr()
}

// SetDeadline sets the read deadline; there is no write deadline.
func (c *Conn) SetDeadline(t time.Time) error {
	return c.agent.buf.SetReadDeadline(t)
}

// SetReadDeadline sets the deadline for future Read calls.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.agent.buf.SetReadDeadline(t)
}

// SetWriteDeadline is a stub; writes never block.
func (c *Conn) SetWriteDeadline(time.Time) error {
	return nil
}
