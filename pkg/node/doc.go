// Package node is the host-side session with one mesh node.
//
// A Node owns the link for its lifetime: it wakes and handshakes on
// Connect, runs a single reader goroutine that correlates admin responses
// by request ID and publishes everything else to an event bus, keeps the
// link alive with heartbeats, and tears everything down on Close.
//
// Configuration is read and written one section at a time:
//
//	v, err := n.GetSection(ctx, node.SectionRegion)
//	v.LoRa.Region = wire.RegionEU868
//	err = n.WriteSection(ctx, v)
//
// Writes issued between BeginEdit and Flush are applied by the node as one
// batch when Flush commits the edit.
package node
