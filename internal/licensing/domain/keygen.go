package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// DefaultKeyPrefix starts every license key.
const DefaultKeyPrefix = "LYCE"

const keyRandomBytes = 8

// KeyGenerator produces license keys of the form PREFIX-TIER-TIME-RANDOM, e.g.
// LYCE-MON-MB3K9Q2A-9F1C0D4E7A2B6C11. The tier tag is for human triage only;
// a key is valid only if the store knows it.
type KeyGenerator struct {
	prefix string
	random io.Reader
	now    func() time.Time
}

// KeyGeneratorOption configures a KeyGenerator.
type KeyGeneratorOption func(*KeyGenerator)

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) KeyGeneratorOption {
	return func(g *KeyGenerator) {
		if prefix = strings.ToUpper(strings.TrimSpace(prefix)); prefix != "" {
			g.prefix = prefix
		}
	}
}

// WithRandomSource replaces crypto/rand.Reader.
func WithRandomSource(r io.Reader) KeyGeneratorOption {
	return func(g *KeyGenerator) { g.random = r }
}

// WithKeyClock replaces time.Now for the time component.
func WithKeyClock(now func() time.Time) KeyGeneratorOption {
	return func(g *KeyGenerator) { g.now = now }
}

// NewKeyGenerator creates a generator backed by crypto/rand.
func NewKeyGenerator(opts ...KeyGeneratorOption) *KeyGenerator {
	g := &KeyGenerator{
		prefix: DefaultKeyPrefix,
		random: rand.Reader,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a new key for the tier. It fails only if the random source does.
func (g *KeyGenerator) Generate(tier Tier) (string, error) {
	buf := make([]byte, keyRandomBytes)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		return "", fmt.Errorf("read key entropy: %w", err)
	}

	stamp := strings.ToUpper(strconv.FormatInt(g.now().UnixMilli(), 36))
	return strings.Join([]string{
		g.prefix,
		tierTag(tier),
		stamp,
		strings.ToUpper(hex.EncodeToString(buf)),
	}, "-"), nil
}

func tierTag(t Tier) string {
	tag := strings.ToUpper(string(t))
	if len(tag) > 3 {
		tag = tag[:3]
	}
	return tag
}

// ParseKeyTier decodes the visible tier tag for support display. It says
// nothing about whether the key is valid.
func ParseKeyTier(key string) (Tier, bool) {
	parts := strings.Split(NormalizeKey(key), "-")
	if len(parts) != 4 {
		return "", false
	}
	for _, t := range []Tier{TierMonthly, TierYearly, TierLifetime} {
		if tierTag(t) == parts[1] {
			return t, true
		}
	}
	return "", false
}

// NormalizeKey trims and upper-cases user-supplied keys before lookup.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// MaskKey hides the random component of a key for logs and listings:
// LYCE-MON-MB3K9Q2A-****6C11.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	parts := strings.Split(key, "-")
	last := parts[len(parts)-1]
	if len(parts) < 2 || len(last) <= 4 {
		if len(key) <= 4 {
			return strings.Repeat("*", len(key))
		}
		return key[:4] + strings.Repeat("*", len(key)-4)
	}
	parts[len(parts)-1] = "****" + last[len(last)-4:]
	return strings.Join(parts, "-")
}
