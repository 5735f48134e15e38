package preflight

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/nao1215/portalshot/internal/model"
)

// startDNS serves a small fixed zone on a local UDP port.
func startDNS(t *testing.T) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		q := r.Question[0]
		switch {
		case q.Name == "portal.test." && q.Qtype == dns.TypeA:
			m.Answer = append(m.Answer, &dns.A{
				Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
				A:   net.ParseIP("127.0.0.1"),
			})
		case q.Name == "v6only.test." && q.Qtype == dns.TypeAAAA:
			m.Answer = append(m.Answer, &dns.AAAA{
				Hdr:  dns.RR_Header{Name: q.Name, Rrtype: dns.TypeAAAA, Class: dns.ClassINET, Ttl: 60},
				AAAA: net.ParseIP("::1"),
			})
		case q.Name == "broken.test.":
			m.Rcode = dns.RcodeServerFailure
		case q.Name == "portal.test." || q.Name == "v6only.test." || q.Name == "empty.test.":
		default:
			m.Rcode = dns.RcodeNameError
		}
		_ = w.WriteMsg(m)
	})

	started := make(chan struct{})
	server := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = server.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = server.Shutdown() })

	return pc.LocalAddr().String()
}

// listenTCP returns the port of a local listener that accepts connections.
func listenTCP(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = l.Close() })
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()
	return l.Addr().(*net.TCPAddr).Port
}

// closedPort returns a port with nothing listening.
func closedPort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatal(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()
	return port
}

// TestCheckerResolve tests DNS resolution against a local server.
func TestCheckerResolve(t *testing.T) {
	t.Parallel()

	c := NewChecker(WithResolver(startDNS(t)), WithTimeout(2*time.Second))

	t.Run("A record is returned", func(t *testing.T) {
		t.Parallel()

		addrs, err := c.Resolve(context.Background(), "portal.test")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(addrs) != 1 || addrs[0] != "127.0.0.1" {
			t.Errorf("unexpected addresses %v", addrs)
		}
	})

	t.Run("AAAA is used when there is no A record", func(t *testing.T) {
		t.Parallel()

		addrs, err := c.Resolve(context.Background(), "v6only.test")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(addrs) != 1 || addrs[0] != "::1" {
			t.Errorf("unexpected addresses %v", addrs)
		}
	})

	t.Run("unknown name returns ErrNXDomain", func(t *testing.T) {
		t.Parallel()

		if _, err := c.Resolve(context.Background(), "missing.test"); !errors.Is(err, ErrNXDomain) {
			t.Errorf("expected ErrNXDomain, got %v", err)
		}
	})

	t.Run("name without records returns ErrNoAddress", func(t *testing.T) {
		t.Parallel()

		if _, err := c.Resolve(context.Background(), "empty.test"); !errors.Is(err, ErrNoAddress) {
			t.Errorf("expected ErrNoAddress, got %v", err)
		}
	})

	t.Run("server failure returns ErrLookupFailed", func(t *testing.T) {
		t.Parallel()

		if _, err := c.Resolve(context.Background(), "broken.test"); !errors.Is(err, ErrLookupFailed) {
			t.Errorf("expected ErrLookupFailed, got %v", err)
		}
	})
}

// TestCheckerCheck tests the full resolve-and-dial check.
func TestCheckerCheck(t *testing.T) {
	t.Parallel()

	resolver := startDNS(t)
	open := strconv.Itoa(listenTCP(t))
	closed := strconv.Itoa(closedPort(t))

	t.Run("resolvable host with open port passes", func(t *testing.T) {
		t.Parallel()

		c := NewChecker(WithResolver(resolver))
		if err := c.Check(context.Background(), model.NewTarget("http://portal.test:"+open+"/")); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("IP literal skips resolution", func(t *testing.T) {
		t.Parallel()

		c := NewChecker(WithResolver("127.0.0.1:1"), WithTimeout(time.Second))
		if err := c.Check(context.Background(), model.NewTarget("https://127.0.0.1:"+open)); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("closed port returns ErrUnreachable", func(t *testing.T) {
		t.Parallel()

		c := NewChecker(WithResolver(resolver))
		if err := c.Check(context.Background(), model.NewTarget("http://portal.test:"+closed)); !errors.Is(err, ErrUnreachable) {
			t.Errorf("expected ErrUnreachable, got %v", err)
		}
	})

	t.Run("unknown host returns ErrNXDomain", func(t *testing.T) {
		t.Parallel()

		c := NewChecker(WithResolver(resolver))
		if err := c.Check(context.Background(), model.NewTarget("https://missing.test")); !errors.Is(err, ErrNXDomain) {
			t.Errorf("expected ErrNXDomain, got %v", err)
		}
	})

	t.Run("target without host returns ErrNoHost", func(t *testing.T) {
		t.Parallel()

		if err := NewChecker().Check(context.Background(), model.NewTarget("not a url")); !errors.Is(err, ErrNoHost) {
			t.Errorf("expected ErrNoHost, got %v", err)
		}
	})

	t.Run("proxied check skips DNS and dials the host name", func(t *testing.T) {
		t.Parallel()

		d := &recordingDialer{}
		c := NewChecker(WithResolver("127.0.0.1:1"), WithProxyDialer(d))
		if err := c.Check(context.Background(), model.NewTarget("https://portal.example:8443")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.addr != "portal.example:8443" {
			t.Errorf("unexpected dial address %q", d.addr)
		}
	})
}

// recordingDialer records the address and returns an in-memory connection.
type recordingDialer struct {
	addr string
}

func (d *recordingDialer) DialContext(_ context.Context, _, addr string) (net.Conn, error) {
	d.addr = addr
	client, server := net.Pipe()
	_ = server.Close()
	return client, nil
}

// TestSystemResolver tests that a resolver address is always returned.
func TestSystemResolver(t *testing.T) {
	t.Parallel()

	host, port, err := net.SplitHostPort(SystemResolver())
	if err != nil || host == "" || port == "" {
		t.Errorf("unexpected resolver %q: %v", SystemResolver(), err)
	}
}
