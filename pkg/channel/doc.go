// Package channel manages the node's fixed array of channel slots.
//
// Slots are addressed by index (0 is the primary channel) or by name, with
// the first match in index order winning. Unnamed slots answer to their
// display name, "Unnamed channel N".
//
// Passphrases given by a user are resolved in a fixed order: the literal
// "random" generates a fresh 128-bit key, a base64 key is used as given,
// and anything else is cleartext the node hashes itself.
package channel
