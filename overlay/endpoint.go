// Package overlay provides the authenticated peer-to-peer transport the
// tunnel runs on. Endpoints are named by ed25519 public keys; connections
// are QUIC, so every stream is reliable and ordered, and one connection
// carries any mix of bidirectional and unidirectional streams.
package overlay

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"math/big"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

// certValidity is the lifetime of the self-signed endpoint certificate.
// Keys are ephemeral, one per process, so the window just needs to cover a
// gaming session with room for clock skew.
const certValidity = 7 * 24 * time.Hour

// Endpoint is a bound overlay endpoint that can accept and dial
// connections.
type Endpoint struct {
	key  ed25519.PrivateKey
	cert tls.Certificate
	tr   *quic.Transport
	ln   *quic.Listener
	alpn string
}

// Bind creates an endpoint on the given UDP address ("host:port"; port 0
// picks an ephemeral one) speaking the given ALPN.
func Bind(listenAddr, alpn string) (*Endpoint, error) {
	pub, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate endpoint key: %w", err)
	}

	cert, err := selfSigned(pub, key)
	if err != nil {
		return nil, fmt.Errorf("issue endpoint certificate: %w", err)
	}

	udpAddr, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve listen address: %w", err)
	}

	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("bind endpoint socket: %w", err)
	}

	ep := &Endpoint{
		key:  key,
		cert: cert,
		tr:   &quic.Transport{Conn: udpConn},
		alpn: alpn,
	}

	ep.ln, err = ep.tr.Listen(ep.serverTLS(), nil)
	if err != nil {
		_ = udpConn.Close()

		return nil, fmt.Errorf("listen: %w", err)
	}

	return ep, nil
}

// NodeID returns the public key naming this endpoint.
func (e *Endpoint) NodeID() NodeID {
	var id NodeID

	copy(id[:], e.key.Public().(ed25519.PublicKey))

	return id
}

// Port returns the UDP port the endpoint is bound to.
func (e *Endpoint) Port() int {
	return e.tr.Conn.LocalAddr().(*net.UDPAddr).Port
}

// Accept waits for the next inbound connection. Only peers presenting the
// matching ALPN complete the handshake.
func (e *Endpoint) Accept(ctx context.Context) (*Conn, error) {
	qc, err := e.ln.Accept(ctx)
	if err != nil {
		return nil, err
	}

	remote, err := peerID(qc)
	if err != nil {
		qc.CloseWithError(0, "missing peer identity")

		return nil, err
	}

	return &Conn{qc: qc, remote: remote}, nil
}

// Connect dials the endpoint named by addr. The handshake fails unless the
// peer proves possession of the key in addr.ID and speaks the same ALPN.
func (e *Endpoint) Connect(ctx context.Context, addr NodeAddr) (*Conn, error) {
	qc, err := e.tr.Dial(ctx, addr.Addr, e.clientTLS(addr.ID), nil)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr.ID.Short(), err)
	}

	return &Conn{qc: qc, remote: addr.ID}, nil
}

// Close shuts the endpoint down, closing its socket.
func (e *Endpoint) Close() error {
	err := e.ln.Close()
	if cerr := e.tr.Conn.Close(); err == nil {
		err = cerr
	}

	return err
}

// serverTLS accepts any client that presents an ed25519 certificate; the
// key is surfaced on the accepted connection.
func (e *Endpoint) serverTLS() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{e.cert},
		NextProtos:   []string{e.alpn},
		ClientAuth:   tls.RequireAnyClientCert,
		MinVersion:   tls.VersionTLS13,
	}
}

// clientTLS pins the server certificate to the expected node id instead of
// any certificate-authority chain.
func (e *Endpoint) clientTLS(expect NodeID) *tls.Config {
	return &tls.Config{
		Certificates:       []tls.Certificate{e.cert},
		NextProtos:         []string{e.alpn},
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: true, // replaced by key pinning below
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			id, err := certNodeID(rawCerts)
			if err != nil {
				return err
			}
			if id != expect {
				return fmt.Errorf("%w: peer key %s does not match %s",
					ErrInvalidNodeID, id.Short(), expect.Short())
			}

			return nil
		},
	}
}

// peerID extracts the remote node id from a completed handshake.
func peerID(qc quic.Connection) (NodeID, error) {
	state := qc.ConnectionState().TLS

	raw := make([][]byte, 0, len(state.PeerCertificates))
	for _, cert := range state.PeerCertificates {
		raw = append(raw, cert.Raw)
	}

	return certNodeID(raw)
}

// certNodeID reads the ed25519 public key out of the leaf certificate.
func certNodeID(rawCerts [][]byte) (NodeID, error) {
	if len(rawCerts) == 0 {
		return NodeID{}, fmt.Errorf("%w: no certificate presented", ErrInvalidNodeID)
	}

	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return NodeID{}, fmt.Errorf("%w: %v", ErrInvalidNodeID, err)
	}

	pub, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok {
		return NodeID{}, fmt.Errorf("%w: certificate key is not ed25519", ErrInvalidNodeID)
	}

	var id NodeID

	copy(id[:], pub)

	return id, nil
}

// selfSigned issues the throwaway certificate carrying the endpoint key.
func selfSigned(pub ed25519.PublicKey, key ed25519.PrivateKey) (tls.Certificate, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, err
	}

	tmpl := x509.Certificate{
		SerialNumber: serial,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(certValidity),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, pub, key)
	if err != nil {
		return tls.Certificate{}, err
	}

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, nil
}
