// Package tor routes captures through Tor.
//
// Two modes exist. Daemon starts an embedded Tor process with tornago and
// exposes its SOCKS5 port. Proxy wraps any SOCKS5 address (embedded or
// external), verifies it with a SOCKS5 handshake, and hands out a dialer for
// pre-flight checks and the "socks5://" URL for the browser.
//
// Hidden service hosts are validated with the v3 checksum before a browser
// is launched for them.
package tor
