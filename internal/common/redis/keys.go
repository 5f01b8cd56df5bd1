package redis

import "fmt"

const (
	variantKeyPrefix = "variant:"
	infoKeyPrefix    = "info:"
)

// KeyGenerator builds the Redis key namespaces used by the variant-cache
// and info-cache backends.
type KeyGenerator struct{}

// NewKeyGenerator creates a new KeyGenerator instance.
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{}
}

// VariantKey returns the Redis key for a variant cache entry, namespaced
// under its owning identifier so Purge can glob all variants for a source
// without a secondary index.
func (kg *KeyGenerator) VariantKey(identifier, fingerprint string) string {
	return fmt.Sprintf("%s%s:%s", variantKeyPrefix, identifier, fingerprint)
}

// InfoKey returns the Redis key for a source's cached Info document.
func (kg *KeyGenerator) InfoKey(identifier string) string {
	return infoKeyPrefix + identifier
}

// VariantPattern returns a KEYS glob matching every variant entry.
func (kg *KeyGenerator) VariantPattern() string {
	return variantKeyPrefix + "*"
}

// VariantPatternFor returns a KEYS glob matching every variant belonging to
// identifier, for Purge.
func (kg *KeyGenerator) VariantPatternFor(identifier string) string {
	return fmt.Sprintf("%s%s:*", variantKeyPrefix, identifier)
}

// InfoKeyPattern returns the exact info key for identifier, named for
// symmetry with VariantPattern in callers that build a purge key list.
func (kg *KeyGenerator) InfoKeyPattern(identifier string) string {
	return fmt.Sprintf("%s%s", infoKeyPrefix, identifier)
}
