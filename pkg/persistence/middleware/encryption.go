package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/ports"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// ErrNoEnvelope is returned when a stored snapshot carries no ciphertext.
var ErrNoEnvelope = errors.New("snapshot is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey seals every snapshot written from now on. Must be KeySize bytes.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot open a
	// snapshot, so keys can be rotated without dropping live sessions.
	FallbackKeys [][]byte
}

// envelopeKey holds the ciphertext inside the stored envelope's answers.
const envelopeKey = "__encrypted__"

type encryptionMiddleware struct {
	next ports.SessionStore
	// keys[0] seals; all of them are tried when opening.
	keys []cipher.AEAD
}

// NewEncryptionMiddleware creates a middleware that seals snapshots with
// AES-GCM. Answers routinely carry personal data, so everything except the
// routing metadata is encrypted. The session id is bound as additional data,
// so an envelope copied under another id does not open.
// It panics when a key is not KeySize bytes.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	keys := make([]cipher.AEAD, 0, 1+len(config.FallbackKeys))
	for i, raw := range append([][]byte{config.ActiveKey}, config.FallbackKeys...) {
		aead, err := newAEAD(raw)
		if err != nil {
			panic(fmt.Sprintf("encryption key %d: %v", i, err))
		}
		keys = append(keys, aead)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &encryptionMiddleware{next: next, keys: keys}
	}
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes (AES-256), got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (m *encryptionMiddleware) Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	plainText, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	sealer := m.keys[0]
	nonce := make([]byte, sealer.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := sealer.Seal(nonce, nonce, plainText, []byte(sessionID))

	// Listing and monitoring only need the routing metadata.
	envelope := domain.NewSnapshot(snap.SessionID, snap.FormID, snap.Scope)
	envelope.Phase = snap.Phase
	envelope.Answers = domain.Answers{
		envelopeKey: base64.StdEncoding.EncodeToString(sealed),
	}
	envelope.UploadedFiles = nil

	return m.next.Save(ctx, sessionID, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	envelope, err := m.next.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// A plain snapshot in an encrypted store is never trusted.
	encoded, ok := envelope.Answers[envelopeKey].(string)
	if !ok {
		return nil, ErrNoEnvelope
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := m.open(sealed, []byte(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt snapshot %s: %w", sessionID, err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(plainText, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted snapshot: %w", err)
	}
	return &snap, nil
}

func (m *encryptionMiddleware) open(sealed, additional []byte) ([]byte, error) {
	for _, aead := range m.keys {
		n := aead.NonceSize()
		if len(sealed) < n {
			return nil, errors.New("ciphertext too short")
		}
		if plain, err := aead.Open(nil, sealed[:n], sealed[n:], additional); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func (m *encryptionMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
