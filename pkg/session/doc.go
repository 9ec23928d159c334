// Package session holds the state of one interactive session: the current
// channel reference and a bounded history of received messages.
package session
