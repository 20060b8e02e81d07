/*
Package server manages the HTTP/HTTPS server lifecycle: non-blocking
startup, graceful shutdown and termination-signal handling.

# Overview

Manager wraps net/http.Server and owns listening, serving, shutdown and
error propagation. Both plain HTTP and TLS startup are supported, with
built-in SIGINT/SIGTERM handling for graceful stops in production.

# Core types

  - Manager: holds the http.Server, net.Listener and an asynchronous
    error channel, exposing Start/StartTLS/Shutdown/WaitForShutdown.
  - Config: listen address, read/write/idle timeouts, maximum request
    header size and the graceful shutdown timeout.
*/
package server
