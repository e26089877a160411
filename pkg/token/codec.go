package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/hkdf"
)

const (
	// DefaultWords is the default number of words per token.
	DefaultWords = 4

	// MinWords and MaxWords bound the configurable word count.
	MinWords = 3
	MaxWords = 12

	// DefaultDelimiter joins words.
	DefaultDelimiter = "-"

	// keyInfo is the HKDF info string for MAC key derivation. Changing it
	// invalidates every token ever issued.
	keyInfo = "kernelgate/token/v1"

	keySize = 32

	// wordSeparator joins lead words inside the MAC input, so the MAC does
	// not depend on the display delimiter.
	wordSeparator = 0x1f

	maxWordLen = 16
)

// Hash selects the keyed hash used for the checksum word.
type Hash string

const (
	HashHMACSHA256 Hash = "hmac-sha256"
	HashBLAKE3     Hash = "blake3"
)

// Errors returned by NewCodec and Generate.
var (
	ErrEmptySecret      = errors.New("token: secret must not be empty")
	ErrInvalidWords     = fmt.Errorf("token: word count must be between %d and %d", MinWords, MaxWords)
	ErrInvalidDelimiter = errors.New("token: delimiter must be non-empty and contain no letters")
	ErrUnknownHash      = errors.New("token: unknown hash")
	ErrRandom           = errors.New("token: secure random source failed")
)

// Option configures a Codec.
type Option func(*Codec)

// WithWords sets the number of words per token, checksum word included.
func WithWords(n int) Option {
	return func(c *Codec) { c.words = n }
}

// WithDelimiter sets the word delimiter.
func WithDelimiter(d string) Option {
	return func(c *Codec) { c.delimiter = d }
}

// WithHash selects the checksum hash.
func WithHash(h Hash) Option {
	return func(c *Codec) { c.hash = h }
}

// WithRandom replaces the random source. Only tests should use this.
func WithRandom(r io.Reader) Option {
	return func(c *Codec) { c.random = r }
}

// Codec generates and verifies tokens bound to a secret.
// A Codec is immutable after construction and safe for concurrent use.
type Codec struct {
	words     int
	delimiter string
	hash      Hash
	random    io.Reader

	key []byte
	// maxLen is the longest possible valid token; longer input is rejected
	// before splitting.
	maxLen int
}

// NewCodec creates a codec for the given secret.
func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	c := &Codec{
		words:     DefaultWords,
		delimiter: DefaultDelimiter,
		hash:      HashHMACSHA256,
		random:    rand.Reader,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.words < MinWords || c.words > MaxWords {
		return nil, ErrInvalidWords
	}
	if !validDelimiter(c.delimiter) {
		return nil, ErrInvalidDelimiter
	}
	switch c.hash {
	case HashHMACSHA256, HashBLAKE3:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHash, c.hash)
	}

	key, err := deriveKey(secret)
	if err != nil {
		return nil, err
	}
	c.key = key

	c.maxLen = c.words*maxWordLen + (c.words-1)*len(c.delimiter)

	return c, nil
}

// deriveKey stretches the configured secret into a fixed-size MAC key.
func deriveKey(secret []byte) ([]byte, error) {
	key := make([]byte, keySize)
	r := hkdf.New(sha256.New, secret, nil, []byte(keyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("token: derive key: %w", err)
	}
	return key, nil
}

func validDelimiter(d string) bool {
	if d == "" {
		return false
	}
	for _, r := range d {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

// Words returns the number of words per token.
func (c *Codec) Words() int { return c.words }

// Delimiter returns the word delimiter.
func (c *Codec) Delimiter() string { return c.delimiter }

// Hash returns the checksum hash in use.
func (c *Codec) Hash() Hash { return c.hash }

// Generate returns a fresh token.
//
// It fails only if the random source fails; the error wraps ErrRandom.
func (c *Codec) Generate() (string, error) {
	lead := c.words - 1
	buf := make([]byte, lead)
	if _, err := io.ReadFull(c.random, buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRandom, err)
	}

	parts := make([]string, 0, c.words)
	for _, b := range buf {
		parts = append(parts, vocabulary[b])
	}
	parts = append(parts, vocabulary[c.checksum(parts)])

	return strings.Join(parts, c.delimiter), nil
}

// Verify reports whether candidate is a token produced under this codec's
// secret and shape. It never panics.
func (c *Codec) Verify(candidate string) bool {
	if candidate == "" || len(candidate) > c.maxLen {
		return false
	}

	parts := strings.Split(candidate, c.delimiter)
	if len(parts) != c.words {
		return false
	}
	for _, p := range parts {
		if _, ok := vocabularyIndex[p]; !ok {
			return false
		}
	}

	want := vocabulary[c.checksum(parts[:c.words-1])]
	got := parts[c.words-1]
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

// Checksum returns the checksum word for the given lead words. It is
// exported for offline tooling; callers must pass vocabulary words.
func (c *Codec) Checksum(lead []string) string {
	return vocabulary[c.checksum(lead)]
}

func (c *Codec) checksum(lead []string) byte {
	var h hash.Hash
	switch c.hash {
	case HashBLAKE3:
		// NewKeyed only fails on a key that is not 32 bytes.
		bh, err := blake3.NewKeyed(c.key)
		if err != nil {
			panic(err)
		}
		h = bh
	default:
		h = hmac.New(sha256.New, c.key)
	}

	for i, w := range lead {
		if i > 0 {
			h.Write([]byte{wordSeparator})
		}
		io.WriteString(h, w)
	}
	return h.Sum(nil)[0]
}

// Vocabulary returns a copy of the public word list.
func Vocabulary() []string {
	out := make([]string, VocabularySize)
	copy(out, vocabulary[:])
	return out
}
