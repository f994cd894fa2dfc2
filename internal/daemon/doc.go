// Package daemon serves regis clients.
//
// Ownership boundary:
// - accepting framed request/response connections
// - retaining recent metric snapshots published by a collector
// - the local console socket and the admin HTTP surface
package daemon
