package overlay

import (
	"context"
	"errors"
	"net"

	"github.com/quic-go/quic-go"
)

// Conn is one overlay connection to a peer. A single connection carries the
// lobby event stream and any number of gameplay streams.
type Conn struct {
	qc     quic.Connection
	remote NodeID
}

// RemoteID returns the peer's node id.
func (c *Conn) RemoteID() NodeID {
	return c.remote
}

// RemoteAddr returns the peer's transport address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.qc.RemoteAddr()
}

// OpenStream opens a bidirectional stream, blocking until the peer grants
// stream credit.
func (c *Conn) OpenStream(ctx context.Context) (quic.Stream, error) {
	return c.qc.OpenStreamSync(ctx)
}

// OpenUniStream opens a send-only stream, blocking until the peer grants
// stream credit.
func (c *Conn) OpenUniStream(ctx context.Context) (quic.SendStream, error) {
	return c.qc.OpenUniStreamSync(ctx)
}

// AcceptStream waits for the peer to open a bidirectional stream.
func (c *Conn) AcceptStream(ctx context.Context) (quic.Stream, error) {
	return c.qc.AcceptStream(ctx)
}

// AcceptUniStream waits for the peer to open a send-only stream.
func (c *Conn) AcceptUniStream(ctx context.Context) (quic.ReceiveStream, error) {
	return c.qc.AcceptUniStream(ctx)
}

// Closed returns a channel that is closed once the connection is gone, for
// whatever reason.
func (c *Conn) Closed() <-chan struct{} {
	return c.qc.Context().Done()
}

// Close tears the connection down with a normal close reason.
func (c *Conn) Close() error {
	return c.qc.CloseWithError(0, "done")
}

// IsClosed reports whether err is the routine end of a stream or
// connection rather than a fault worth logging.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}

	var (
		appErr     *quic.ApplicationError
		streamErr  *quic.StreamError
		idleErr    *quic.IdleTimeoutError
		statelessQ *quic.StatelessResetError
	)

	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.As(err, &appErr) ||
		errors.As(err, &streamErr) ||
		errors.As(err, &idleErr) ||
		errors.As(err, &statelessQ)
}
