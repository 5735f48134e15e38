package tor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// DefaultCheckTimeout bounds the SOCKS5 handshake of CheckConnection.
const DefaultCheckTimeout = 5 * time.Second

// SOCKS5 protocol bytes used by the handshake.
const (
	socks5Version    = 0x05
	socks5AuthNone   = 0x00
	socks5CmdConnect = 0x01
	socks5AddrDomain = 0x03

	// checkHost is a syntactically valid onion host that does not exist.
	// The check only needs the proxy to answer the CONNECT request.
	checkHost = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaam2dqd.onion"
	checkPort = 80
)

// Proxy is a SOCKS5 proxy used for captures and pre-flight dials.
type Proxy struct {
	address      string
	dialer       proxy.Dialer
	checkTimeout time.Duration
}

// NewProxy validates address ("host:port") and prepares a SOCKS5 dialer.
// It does not contact the proxy; call CheckConnection for that.
func NewProxy(address string) (*Proxy, error) {
	if !isValidProxyAddress(address) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, address)
	}
	dialer, err := proxy.SOCKS5("tcp", address, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	return &Proxy{address: address, dialer: dialer, checkTimeout: DefaultCheckTimeout}, nil
}

func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// Address returns the proxy address in "host:port" form.
func (p *Proxy) Address() string {
	return p.address
}

// BrowserURL returns the proxy in the form Chrome's --proxy-server expects.
func (p *Proxy) BrowserURL() string {
	return "socks5://" + p.address
}

// Dialer returns a context-aware dialer that connects through the proxy.
func (p *Proxy) Dialer() proxy.ContextDialer {
	if cd, ok := p.dialer.(proxy.ContextDialer); ok {
		return cd
	}
	return contextDialer{p.dialer}
}

// contextDialer adapts a plain proxy.Dialer.
type contextDialer struct {
	proxy.Dialer
}

func (d contextDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := d.Dial(network, address)
		ch <- result{conn, err}
	}()
	select {
	case r := <-ch:
		return r.conn, r.err
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// CheckConnection performs a SOCKS5 greeting and a CONNECT request to
// verify that the address really is a working SOCKS5 proxy. Any CONNECT
// reply, even a failure code, counts as OK.
func (p *Proxy) CheckConnection(ctx context.Context) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, p.checkTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.address)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return ProxyStatusCannotConnect
	}

	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}
	greeting := make([]byte, 2)
	if _, err := io.ReadFull(conn, greeting); err != nil {
		return readFailure(err)
	}
	if greeting[0] != socks5Version || greeting[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}

	req := []byte{socks5Version, socks5CmdConnect, 0x00, socks5AddrDomain, byte(len(checkHost))}
	req = append(req, checkHost...)
	req = append(req, byte(checkPort>>8), byte(checkPort&0xff))
	if _, err := conn.Write(req); err != nil {
		return ProxyStatusCannotConnect
	}
	reply := make([]byte, 4)
	if _, err := io.ReadFull(conn, reply); err != nil {
		return readFailure(err)
	}
	if reply[0] != socks5Version {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

func readFailure(err error) ProxyStatus {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return ProxyStatusTimeout
	}
	return ProxyStatusWrongType
}
