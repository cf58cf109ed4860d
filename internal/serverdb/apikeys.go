package serverdb

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

const (
	apiKeyPrefix = "ns_live_"
	keyLength    = 32
)

var base62Chars = []byte("0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz")

// Owner is a registered account that records belong to.
type Owner struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// APIKey represents a stored API key (without the plaintext secret).
type APIKey struct {
	ID         string
	OwnerID    string
	KeyPrefix  string
	Name       string
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

// CreateOwner registers a new owner and returns it.
func (db *ServerDB) CreateOwner(name string) (*Owner, error) {
	id, err := generateID("own_")
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if _, err := db.conn.Exec(
		`INSERT INTO owners (id, name, created_at) VALUES (?, ?, ?)`,
		id, name, now,
	); err != nil {
		return nil, fmt.Errorf("insert owner: %w", err)
	}
	return &Owner{ID: id, Name: name, CreatedAt: now}, nil
}

// GenerateAPIKey creates a new API key for the given owner.
// Returns the plaintext key (shown once) and the stored APIKey record.
func (db *ServerDB) GenerateAPIKey(ownerID, name string) (string, *APIKey, error) {
	var exists int
	if err := db.conn.QueryRow(`SELECT 1 FROM owners WHERE id = ?`, ownerID).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return "", nil, fmt.Errorf("owner not found: %s", ownerID)
		}
		return "", nil, fmt.Errorf("check owner: %w", err)
	}

	id, err := generateID("ak_")
	if err != nil {
		return "", nil, fmt.Errorf("generate api key id: %w", err)
	}

	secret := make([]byte, keyLength)
	for i := range secret {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(base62Chars))))
		if err != nil {
			return "", nil, fmt.Errorf("generate random key: %w", err)
		}
		secret[i] = base62Chars[n.Int64()]
	}

	plaintext := apiKeyPrefix + string(secret)
	prefix := string(secret[:8])

	hash := sha256.Sum256([]byte(plaintext))
	keyHash := hex.EncodeToString(hash[:])

	now := time.Now().UTC()
	_, err = db.conn.Exec(
		`INSERT INTO api_keys (id, owner_id, key_hash, key_prefix, name, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, ownerID, keyHash, prefix, name, now,
	)
	if err != nil {
		return "", nil, fmt.Errorf("insert api key: %w", err)
	}

	ak := &APIKey{
		ID:        id,
		OwnerID:   ownerID,
		KeyPrefix: prefix,
		Name:      name,
		CreatedAt: now,
	}
	return plaintext, ak, nil
}

// VerifyAPIKey checks a plaintext key against stored hashes.
// Returns the matching APIKey and its Owner, or nil when no key matches.
func (db *ServerDB) VerifyAPIKey(plaintextKey string) (*APIKey, *Owner, error) {
	hash := sha256.Sum256([]byte(plaintextKey))
	keyHash := hex.EncodeToString(hash[:])

	ak := &APIKey{}
	o := &Owner{}
	err := db.conn.QueryRow(`
		SELECT ak.id, ak.owner_id, ak.key_prefix, ak.name, ak.last_used_at, ak.created_at,
		       o.id, o.name, o.created_at
		FROM api_keys ak
		JOIN owners o ON o.id = ak.owner_id
		WHERE ak.key_hash = ?
	`, keyHash).Scan(
		&ak.ID, &ak.OwnerID, &ak.KeyPrefix, &ak.Name, &ak.LastUsedAt, &ak.CreatedAt,
		&o.ID, &o.Name, &o.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("verify api key: %w", err)
	}

	db.conn.Exec(`UPDATE api_keys SET last_used_at = ? WHERE id = ?`, time.Now().UTC(), ak.ID)

	return ak, o, nil
}
