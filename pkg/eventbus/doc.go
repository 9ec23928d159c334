// Package eventbus delivers inbound node events to subscribers on a single
// dispatch goroutine.
//
// The node's reader goroutine publishes; Run drains a bounded queue and
// invokes handlers one at a time, in publish order. A slow handler
// therefore applies back-pressure to the reader instead of growing memory.
//
// Handler failures are contained: an error return or a panic is logged and
// the handler remains subscribed for later events.
package eventbus
