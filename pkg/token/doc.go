// Package token implements secret-bound word tokens.
//
// A token is N words drawn from a fixed public vocabulary and joined by a
// delimiter, for example "fox-wolf-bear-lion".
//
// Token Format:
//
//   - Words 1..N-1: one uniformly random vocabulary index each (crypto/rand)
//   - Word N: checksum word, vocabulary[MAC(key, w1 0x1f ... wN-1)[0]]
//   - Default: 4 words, "-" delimiter
//
// Key Derivation:
//
//   - The MAC key is derived from the configured secret with HKDF-SHA256
//   - MAC is HMAC-SHA256 (default) or keyed BLAKE3
//
// Security:
//
//   - Lead words carry the entropy; the checksum word carries integrity only
//   - Verify is total and compares the checksum word in constant time
//   - Any process holding the same secret can verify any other's tokens
package token
