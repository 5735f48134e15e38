package tor

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/tornago"
)

// Daemon manages an embedded Tor process started with tornago.
// Bootstrapping usually takes one to three minutes.
type Daemon struct {
	process        *tornago.TorProcess
	socksAddr      string
	startupTimeout time.Duration
}

// DaemonOption configures a Daemon.
type DaemonOption func(*Daemon)

// WithStartupTimeout sets the maximum time to wait for Tor to bootstrap.
func WithStartupTimeout(timeout time.Duration) DaemonOption {
	return func(d *Daemon) {
		d.startupTimeout = timeout
	}
}

// NewDaemon creates a Daemon. Call Start to launch Tor.
func NewDaemon(opts ...DaemonOption) *Daemon {
	d := &Daemon{startupTimeout: 3 * time.Minute}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches Tor on OS-assigned ports and blocks until it has
// bootstrapped or the startup timeout expires.
func (d *Daemon) Start(ctx context.Context) error {
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(d.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}

	if err := ctx.Err(); err != nil {
		_ = process.Stop() //nolint:errcheck // best effort cleanup
		return err
	}

	d.process = process
	d.socksAddr = process.SocksAddr()
	return nil
}

// Stop shuts Tor down. It is safe on an unstarted Daemon and when called twice.
func (d *Daemon) Stop() error {
	if d.process == nil {
		return nil
	}
	err := d.process.Stop()
	d.process = nil
	d.socksAddr = ""
	return err
}

// SocksAddr returns the SOCKS5 address, empty when not running.
func (d *Daemon) SocksAddr() string {
	return d.socksAddr
}

// IsRunning reports whether the daemon is up.
func (d *Daemon) IsRunning() bool {
	return d.process != nil
}

// Proxy returns a Proxy for the daemon's SOCKS5 port.
func (d *Daemon) Proxy() (*Proxy, error) {
	if !d.IsRunning() {
		return nil, ErrDaemonNotRunning
	}
	return NewProxy(d.socksAddr)
}
