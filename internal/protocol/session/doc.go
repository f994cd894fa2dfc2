// Package session owns the connection handle shared by regis clients and the
// daemon.
//
// Ownership boundary:
// - dialing with connect timeout and retry backoff
// - per-connection send/receive serialisation
// - typed request/response exchange over framed JSON
package session
