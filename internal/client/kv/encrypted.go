package kv

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"
	_ "modernc.org/sqlite"

	"github.com/atinyakov/GophShop/internal/logger"
)

const (
	storageFile      = "storage.db"
	pbkdf2Iterations = 100_000
	keySize          = 32
	saltSize         = 16
	checkPlaintext   = "gophshop"
)

// ErrWrongPassphrase is returned when a store was created with another passphrase.
var ErrWrongPassphrase = errors.New("kv: wrong passphrase")

// EncryptedStore is a disk-backed Store. Values are sealed with AES-256-GCM
// under a key derived from the passphrase; the key name is bound as
// additional data so a value cannot be moved to another key.
type EncryptedStore struct {
	db   *sqlx.DB
	aead cipher.AEAD
	log  *zap.Logger
}

// OpenEncrypted opens or creates <dataDir>/storage.db.
func OpenEncrypted(dataDir, passphrase string, log *zap.Logger) (*EncryptedStore, error) {
	if passphrase == "" {
		return nil, errors.New("encryption passphrase is not set")
	}
	if dataDir == "" {
		return nil, errors.New("data directory is not set")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dsn := filepath.Join(dataDir, storageFile) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open storage database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &EncryptedStore{db: db, log: logger.OrNop(log)}
	if err := s.init(passphrase); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *EncryptedStore) init(passphrase string) error {
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS meta (name TEXT PRIMARY KEY, data BLOB NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS entries (name TEXT PRIMARY KEY, data BLOB NOT NULL)`,
	} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate storage database: %w", err)
		}
	}

	salt, err := s.metaValue("salt")
	fresh := errors.Is(err, sql.ErrNoRows)
	switch {
	case fresh:
		salt = make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return fmt.Errorf("generate salt: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read salt: %w", err)
	}

	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return err
	}
	s.aead = aead

	if fresh {
		check, err := s.seal("meta:check", []byte(checkPlaintext))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(`INSERT INTO meta (name, data) VALUES ('salt', ?), ('check', ?)`, salt, check); err != nil {
			return fmt.Errorf("write salt: %w", err)
		}
		return nil
	}

	check, err := s.metaValue("check")
	if err != nil {
		return fmt.Errorf("read check value: %w", err)
	}
	if plain, err := s.open("meta:check", check); err != nil || string(plain) != checkPlaintext {
		return ErrWrongPassphrase
	}
	return nil
}

func (s *EncryptedStore) metaValue(name string) ([]byte, error) {
	var v []byte
	err := s.db.Get(&v, `SELECT data FROM meta WHERE name = ?`, name)
	return v, err
}

// newAEAD derives an AES-256-GCM cipher from the passphrase and salt.
func newAEAD(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return aead, nil
}

// seal returns nonce || ciphertext.
func (s *EncryptedStore) seal(name string, plain []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plain, []byte(name)), nil
}

func (s *EncryptedStore) open(name string, sealed []byte) ([]byte, error) {
	ns := s.aead.NonceSize()
	if len(sealed) < ns {
		return nil, errors.New("ciphertext too short")
	}
	return s.aead.Open(nil, sealed[:ns], sealed[ns:], []byte(name))
}

// Set stores value under key.
func (s *EncryptedStore) Set(key, value string) error {
	sealed, err := s.seal(key, []byte(value))
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO entries (name, data) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data
	`, key, sealed)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// GetString returns the decrypted value under key. Read or decryption
// failures are logged and reported as a missing key.
func (s *EncryptedStore) GetString(key string) (string, bool) {
	var sealed []byte
	err := s.db.Get(&sealed, `SELECT data FROM entries WHERE name = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false
	}
	if err != nil {
		s.log.Warn("storage read failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	plain, err := s.open(key, sealed)
	if err != nil {
		s.log.Warn("storage value does not decrypt", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return string(plain), true
}

// Delete removes key. Deleting a missing key is not an error.
func (s *EncryptedStore) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM entries WHERE name = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Contains reports whether key is present.
func (s *EncryptedStore) Contains(key string) bool {
	var exists bool
	if err := s.db.Get(&exists, `SELECT EXISTS(SELECT 1 FROM entries WHERE name = ?)`, key); err != nil {
		s.log.Warn("storage lookup failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return exists
}

// ClearAll removes every key.
func (s *EncryptedStore) ClearAll() error {
	if _, err := s.db.Exec(`DELETE FROM entries`); err != nil {
		return fmt.Errorf("clear storage: %w", err)
	}
	return nil
}

// Keys lists every key in lexical order.
func (s *EncryptedStore) Keys() []string {
	keys := []string{}
	if err := s.db.Select(&keys, `SELECT name FROM entries ORDER BY name`); err != nil {
		s.log.Warn("storage key listing failed", zap.Error(err))
		return []string{}
	}
	return keys
}

// Close closes the underlying database.
func (s *EncryptedStore) Close() error {
	return s.db.Close()
}
