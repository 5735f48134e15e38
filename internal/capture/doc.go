// Package capture drives a headless browser to screenshot one URL.
//
// The browser is an injected capability (Browser and Session), so the Unit
// can be exercised with a fake in tests. ChromeBrowser is the production
// implementation on top of chromedp.
//
// A capture goes through these steps:
//  1. reject URLs without an explicit http:// or https:// prefix
//  2. reject .onion hosts without a proxy or with a bad v3 checksum
//  3. open an isolated session (fixed viewport, certificate errors ignored,
//     per-site headers and cookie)
//  4. navigate within the navigation timeout
//  5. wait the settle delay so dynamic content can render
//  6. in login-gate mode, wait for a password field; give up if none shows
//  7. write the PNG and read the page title
//
// The session is closed on every exit path. Each call opens its own session,
// so no browser state leaks from one target to the next.
package capture
