// Package preflight checks that a target is reachable before a browser is
// launched for it. Launching Chrome and waiting out the navigation timeout
// is expensive; a dead DNS name or a closed port fails here in milliseconds.
//
// A check resolves the host with miekg/dns (A, then AAAA) against a chosen
// resolver and then opens a TCP connection to host:port. IP literals skip
// resolution. When a SOCKS proxy is used, resolution is left to the proxy and
// the dial goes through it.
package preflight
