package preflight

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/miekg/dns"
	"github.com/nao1215/portalshot/internal/model"
	"golang.org/x/net/proxy"
)

const (
	// DefaultResolver is used when /etc/resolv.conf cannot be read.
	DefaultResolver = "1.1.1.1:53"

	// DefaultTimeout bounds each lookup and dial.
	DefaultTimeout = 5 * time.Second

	resolvConfPath = "/etc/resolv.conf"
)

// Checker runs pre-flight checks.
type Checker struct {
	resolver string
	dialer   proxy.ContextDialer
	proxied  bool
	timeout  time.Duration
	client   *dns.Client
}

// Option configures a Checker.
type Option func(*Checker)

// WithResolver sets the DNS server ("host:port").
func WithResolver(addr string) Option {
	return func(c *Checker) {
		if addr != "" {
			c.resolver = addr
		}
	}
}

// WithProxyDialer dials through d and leaves name resolution to the proxy.
func WithProxyDialer(d proxy.ContextDialer) Option {
	return func(c *Checker) {
		c.dialer = d
		c.proxied = true
	}
}

// WithTimeout bounds each lookup and dial.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewChecker creates a Checker using the system resolver and direct dials.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		resolver: SystemResolver(),
		dialer:   proxy.Direct,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.client = &dns.Client{Net: "udp", Timeout: c.timeout}
	return c
}

// SystemResolver returns the first nameserver of /etc/resolv.conf, or
// DefaultResolver.
func SystemResolver() string {
	cfg, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil || len(cfg.Servers) == 0 {
		return DefaultResolver
	}
	return net.JoinHostPort(cfg.Servers[0], cfg.Port)
}

// Check verifies that target resolves and accepts TCP connections.
func (c *Checker) Check(ctx context.Context, target model.Target) error {
	if target.Host == "" {
		return ErrNoHost
	}
	port := target.EffectivePort()
	if port == 0 {
		return fmt.Errorf("%w: no port for scheme %q", ErrUnreachable, target.Scheme)
	}

	dialHost := target.Host
	if !c.proxied && net.ParseIP(target.Host) == nil {
		addrs, err := c.Resolve(ctx, target.Host)
		if err != nil {
			return err
		}
		dialHost = addrs[0]
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(dialCtx, "tcp", net.JoinHostPort(dialHost, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	return conn.Close()
}

// Resolve returns the IPv4 addresses of host, or its IPv6 addresses when it
// has no A records.
func (c *Checker) Resolve(ctx context.Context, host string) ([]string, error) {
	addrs, err := c.lookup(ctx, host, dns.TypeA)
	if err != nil {
		return nil, err
	}
	if len(addrs) > 0 {
		return addrs, nil
	}

	addrs, err = c.lookup(ctx, host, dns.TypeAAAA)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoAddress, host)
	}
	return addrs, nil
}

func (c *Checker) lookup(ctx context.Context, host string, qtype uint16) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)
	msg.RecursionDesired = true

	resp, _, err := c.client.ExchangeContext(ctx, msg, c.resolver)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrLookupFailed, dns.TypeToString[qtype], host, err)
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, fmt.Errorf("%w: %s", ErrNXDomain, host)
	default:
		return nil, fmt.Errorf("%w: %s %s: %s", ErrLookupFailed, dns.TypeToString[qtype], host, dns.RcodeToString[resp.Rcode])
	}

	var addrs []string
	for _, rr := range resp.Answer {
		switch r := rr.(type) {
		case *dns.A:
			addrs = append(addrs, r.A.String())
		case *dns.AAAA:
			addrs = append(addrs, r.AAAA.String())
		}
	}
	return addrs, nil
}
