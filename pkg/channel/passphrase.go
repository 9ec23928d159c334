package channel

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

// RandomKeySize is the size of generated keys in bytes.
const RandomKeySize = 16

// PassphraseKind classifies a resolved passphrase.
type PassphraseKind uint8

const (
	// PassphraseUnset leaves the slot's key material unchanged.
	PassphraseUnset PassphraseKind = iota
	// PassphraseKey is base64-encoded key material.
	PassphraseKey
	// PassphraseCleartext is a phrase the node hashes itself.
	PassphraseCleartext
)

// String returns the kind name.
func (k PassphraseKind) String() string {
	switch k {
	case PassphraseUnset:
		return "unset"
	case PassphraseKey:
		return "key"
	case PassphraseCleartext:
		return "cleartext"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Passphrase is resolved channel key material.
type Passphrase struct {
	Kind  PassphraseKind
	Value string

	// Generated is set when Value was produced from "random".
	Generated bool
}

// ResolvePassphrase classifies raw. The order of checks is fixed:
// "random" (any case), then base64 key, then cleartext. An empty raw
// value resolves to PassphraseUnset.
func ResolvePassphrase(raw string) (Passphrase, error) {
	if raw == "" {
		return Passphrase{}, nil
	}
	if strings.EqualFold(raw, "random") {
		key := make([]byte, RandomKeySize)
		if _, err := rand.Read(key); err != nil {
			return Passphrase{}, fmt.Errorf("generate key: %w", err)
		}
		return Passphrase{
			Kind:      PassphraseKey,
			Value:     base64.StdEncoding.EncodeToString(key),
			Generated: true,
		}, nil
	}
	if isBase64Key(raw) {
		return Passphrase{Kind: PassphraseKey, Value: raw}, nil
	}
	return Passphrase{Kind: PassphraseCleartext, Value: raw}, nil
}

// isBase64Key reports whether s is canonical padded base64 that either
// carries padding or decodes to an AES key length. Unpadded strings of
// other lengths are ordinary words that happen to use the alphabet.
func isBase64Key(s string) bool {
	b, err := base64.StdEncoding.Strict().DecodeString(s)
	if err != nil || len(b) == 0 {
		return false
	}
	return strings.HasSuffix(s, "=") || len(b) == 16 || len(b) == 32
}

// Bytes returns the material sent to the node, or nil for PassphraseUnset.
func (p Passphrase) Bytes() []byte {
	switch p.Kind {
	case PassphraseKey:
		b, _ := base64.StdEncoding.DecodeString(p.Value)
		return b
	case PassphraseCleartext:
		return []byte(p.Value)
	default:
		return nil
	}
}

// Masked returns one asterisk per character of the value.
func (p Passphrase) Masked() string {
	return strings.Repeat("*", len(p.Value))
}

// String masks the value so passphrases never reach logs.
func (p Passphrase) String() string {
	if p.Kind == PassphraseUnset {
		return "(none)"
	}
	return p.Kind.String() + ":" + p.Masked()
}
