package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
)

const (
	apiKeyPrefix      = "isk_live_"
	apiKeySecretBytes = 32
)

// KeyGenerator issues API keys. Only the hash of a key is ever stored.
type KeyGenerator struct {
	node *snowflake.Node
}

func NewKeyGenerator(nodeID int64) (*KeyGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node: %w", err)
	}
	return &KeyGenerator{node: node}, nil
}

// Generate returns a key id, the plain key to hand out once, and its hash.
func (g *KeyGenerator) Generate() (keyID, plain, hash string, err error) {
	secret := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", "", "", err
	}
	id := g.node.Generate()
	keyID = "key_" + strings.ToUpper(strconv.FormatInt(id.Int64(), 36))
	plain = fmt.Sprintf("%s%s_%s", apiKeyPrefix, strings.TrimPrefix(keyID, "key_"), hex.EncodeToString(secret))
	return keyID, plain, HashAPIKey(plain), nil
}

// HashAPIKey hashes the raw API key using the same strategy as key creation.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// LooksLikeAPIKey rejects obviously malformed keys before a lookup.
func LooksLikeAPIKey(raw string) bool {
	return strings.HasPrefix(raw, apiKeyPrefix) && len(raw) > len(apiKeyPrefix)+2*apiKeySecretBytes
}
