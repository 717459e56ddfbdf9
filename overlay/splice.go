package overlay

import (
	"io"
	"net"

	"github.com/quic-go/quic-go"
	"golang.org/x/sync/errgroup"
)

// Splice copies bytes both ways between a bidirectional overlay stream and
// a local socket until either side closes. Each direction half-closes its
// peer when its source reaches EOF, so an orderly shutdown on one end
// drains and closes the other.
func Splice(stream quic.Stream, conn net.Conn) error {
	var g errgroup.Group

	g.Go(func() error {
		_, err := io.Copy(conn, stream)

		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.CloseWrite()
		}

		return err
	})

	g.Go(func() error {
		_, err := io.Copy(stream, conn)

		_ = stream.Close()

		return err
	})

	err := g.Wait()
	if IsClosed(err) || err == io.EOF {
		return nil
	}

	return err
}
