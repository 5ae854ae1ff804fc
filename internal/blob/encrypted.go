package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"

	"caprev/internal/review"
)

// AgeKeys manages the X25519 key pair used to encrypt blobs at rest.
// The public key is stored in plaintext; the private key is encrypted with a
// passphrase using age's scrypt-based passphrase encryption.
type AgeKeys struct {
	PublicKeyPath  string
	PrivateKeyPath string
}

// Setup generates a new key pair and writes both key files.
func (k AgeKeys) Setup(passphrase string) error {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}

	for _, p := range []string{k.PublicKeyPath, k.PrivateKeyPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
			return fmt.Errorf("creating key directory: %w", err)
		}
	}

	if err := os.WriteFile(k.PublicKeyPath, []byte(identity.Recipient().String()+"\n"), 0644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}

	privFile, err := os.OpenFile(k.PrivateKeyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating private key file: %w", err)
	}
	defer privFile.Close()

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}
	w, err := age.Encrypt(privFile, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.WriteString(w, identity.String()+"\n"); err != nil {
		return fmt.Errorf("writing encrypted private key: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encrypted private key: %w", err)
	}
	return nil
}

// IsConfigured reports whether both key files exist.
func (k AgeKeys) IsConfigured() bool {
	if _, err := os.Stat(k.PublicKeyPath); err != nil {
		return false
	}
	_, err := os.Stat(k.PrivateKeyPath)
	return err == nil
}

// Unlock decrypts the private key with passphrase and returns the identity
// together with the public recipient.
func (k AgeKeys) Unlock(passphrase string) (age.Identity, age.Recipient, error) {
	pubData, err := os.ReadFile(k.PublicKeyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading public key: %w", err)
	}
	recipients, err := age.ParseRecipients(bytes.NewReader(pubData))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing public key: %w", err)
	}
	if len(recipients) == 0 {
		return nil, nil, fmt.Errorf("no recipients found in public key file")
	}

	privData, err := os.ReadFile(k.PrivateKeyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading private key file: %w", err)
	}
	scrypt, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, nil, fmt.Errorf("creating scrypt identity: %w", err)
	}
	dec, err := age.Decrypt(bytes.NewReader(privData), scrypt)
	if err != nil {
		return nil, nil, fmt.Errorf("decrypting private key: %w", err)
	}
	identities, err := age.ParseIdentities(dec)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing private key: %w", err)
	}
	if len(identities) == 0 {
		return nil, nil, fmt.Errorf("no identities found in private key")
	}

	return identities[0], recipients[0], nil
}

// EncryptedStore wraps another store and age-encrypts every payload.
// Ciphertext is spooled to a temp file first so the wrapped store receives an
// exact size.
type EncryptedStore struct {
	inner     review.BlobStore
	identity  age.Identity
	recipient age.Recipient
	tmpDir    string
}

// NewEncryptedStore wraps inner. tmpDir may be empty to use the OS default.
func NewEncryptedStore(inner review.BlobStore, identity age.Identity, recipient age.Recipient, tmpDir string) *EncryptedStore {
	return &EncryptedStore{inner: inner, identity: identity, recipient: recipient, tmpDir: tmpDir}
}

// Put encrypts r and stores the ciphertext under name.
func (s *EncryptedStore) Put(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	tmp, err := os.CreateTemp(s.tmpDir, ".enc-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	w, err := age.Encrypt(tmp, s.recipient)
	if err != nil {
		return "", fmt.Errorf("creating encrypted writer: %w", err)
	}
	written, err := io.Copy(w, r)
	if err != nil {
		return "", fmt.Errorf("encrypting data: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing encryption: %w", err)
	}
	if size >= 0 && written != size {
		return "", fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}

	cipherSize, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return "", fmt.Errorf("measuring ciphertext: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewinding ciphertext: %w", err)
	}
	return s.inner.Put(ctx, name, tmp, cipherSize)
}

// Open returns a decrypting stream over the stored ciphertext.
func (s *EncryptedStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	rc, err := s.inner.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	dec, err := age.Decrypt(rc, s.identity)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("creating decrypted reader: %w", err)
	}
	return struct {
		io.Reader
		io.Closer
	}{dec, rc}, nil
}

// Delete removes the ciphertext.
func (s *EncryptedStore) Delete(ctx context.Context, ref string) error {
	return s.inner.Delete(ctx, ref)
}

// Compile-time check that EncryptedStore implements review.BlobStore.
var _ review.BlobStore = (*EncryptedStore)(nil)
