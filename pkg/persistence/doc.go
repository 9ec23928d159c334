// Package persistence stores interactive session state between runs.
//
// Each node gets its own JSON file in the state directory holding the
// current channel reference and the recent message history.
package persistence
