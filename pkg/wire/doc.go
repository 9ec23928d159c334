// Package wire defines the protobuf wire types exchanged with a mesh node.
//
// Only the subset of the radio API needed to configure a node and exchange
// text messages is modelled. Messages are encoded by hand with protowire so
// the package carries no generated code.
//
// # Message Types
//
// There are two top-level envelopes:
//   - ToRadio: host to node (mesh packets, config download request, heartbeat)
//   - FromRadio: node to host (mesh packets, node database, config, channels)
//
// Configuration is read and written with AdminMessage payloads carried in
// MeshPackets addressed to the local node on the ADMIN_APP port. Responses are
// correlated by the request_id of the Data payload.
//
// # Unknown Fields
//
// Configuration messages retain fields they do not model and re-emit them on
// encode, so a read-modify-write cycle never clears settings this package
// does not know about.
package wire
