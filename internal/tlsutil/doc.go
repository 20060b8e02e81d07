// Package tlsutil provides centralized hardened TLS settings (TLS 1.2+,
// AEAD-only cipher suites) for HTTP servers and clients.
package tlsutil
