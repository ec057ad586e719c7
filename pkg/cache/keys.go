package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Key categories shared across services. Keys follow the convention
// "{category}:{discriminator}:{hash_or_id}" so that invalidation patterns
// and the stats reporter can group entries by prefix.
const (
	CategoryEmbedding  = "embedding"
	CategoryProcessing = "processing"
	CategorySearch     = "search"
	CategoryContext    = "context"
)

// DeriveKey builds a deterministic cache key from a semantic payload.
//
// The payload is canonicalized by encoding/json, which emits map keys in
// sorted order and uses compact, fixed number formatting, so logically equal
// payloads produce identical keys regardless of insertion order or process.
// The canonical bytes are hashed with SHA-256 and the key is formatted as
// "{prefix}:{hexdigest}".
//
// A payload that cannot be serialized is a caller contract violation and
// the error is returned rather than swallowed.
func DeriveKey(prefix string, payload map[string]interface{}) (string, error) {
	canonical, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("payload not serializable for key derivation: %w", err)
	}
	digest := sha256.Sum256(canonical)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(digest[:])), nil
}

// ContentKey builds an identity-based key from an externally supplied stable
// fingerprint (for example a file hash), concatenated with its category and
// discriminator. The fingerprint is already a unique identifier, so it is
// used verbatim instead of being hashed again.
func ContentKey(category, discriminator, id string) string {
	return fmt.Sprintf("%s:%s:%s", category, discriminator, id)
}

// HashText returns the SHA-256 hex digest of text. Used to produce content
// hashes for embedding keys and query hashes for search keys.
func HashText(text string) string {
	digest := sha256.Sum256([]byte(text))
	return hex.EncodeToString(digest[:])
}
