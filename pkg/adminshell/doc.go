// Package adminshell implements the line-protocol proxy (C7) that brokers
// administrative commands to the backend's interactive console: a
// long-running child process fed newline-delimited commands on stdin,
// producing line-oriented output on stdout classified by a documented
// prefix grammar. The proxy owns the single writer lock over the shell
// handle; every command runs to completion before the next is accepted.
package adminshell
