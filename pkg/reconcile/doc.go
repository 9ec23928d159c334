// Package reconcile converges a node's configuration towards a desired
// state.
//
// Sections are visited in a fixed order: identity, region, role, position,
// network, channel. Each populated section is read from the node, compared
// with its desired value and written at most once. A failure in one section
// never stops the others. Running the same desired state twice performs no
// writes the second time.
package reconcile
