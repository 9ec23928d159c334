// Package transport provides the byte-level link to a mesh node.
//
// The transport layer handles:
//   - Serial (115200 8N1) and TCP (port 4403) links
//   - Stream framing with resynchronisation on the start marker
//   - Separation of device console output from protocol frames
//   - Periodic heartbeats so idle links are not dropped
//
// # Stream Framing
//
//	┌──────┬──────┬─────────────┬──────────────────────┐
//	│ 0x94 │ 0xC3 │ length (BE) │ payload (≤512 bytes) │
//	└──────┴──────┴─────────────┴──────────────────────┘
//
// Bytes outside a frame are console text emitted by the firmware. They are
// collected into lines and handed to an optional callback.
//
// A serial node only switches to protocol mode after receiving a run of
// 0xC3 bytes; see WakeSequence.
package transport
