package sim

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/nacl/box"
)

const credsFile = "creds.json"

// credentials is the simulated provider's persisted authentication
// material. The key pair stands in for the real provider's pairing keys;
// losing or corrupting it requires pairing again.
type credentials struct {
	JID          string    `json:"jid"`
	PublicKey    []byte    `json:"publicKey"`
	PrivateKey   []byte    `json:"privateKey"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// generateCredentials mints fresh credential material for a paired number.
func generateCredentials(number, domain string) (*credentials, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate credential key pair: %w", err)
	}
	return &credentials{
		JID:          number + "@" + domain,
		PublicKey:    pub[:],
		PrivateKey:   priv[:],
		RegisteredAt: time.Now().UTC(),
	}, nil
}

// loadCredentials reads the credential artifact from dir. A missing file
// yields (nil, nil): the session simply has not paired yet. A file that
// cannot be parsed or carries malformed key material yields an error whose
// message marks it as a decryption failure, which callers use to trigger
// a purge.
func loadCredentials(dir string) (*credentials, error) {
	data, err := os.ReadFile(filepath.Join(dir, credsFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var creds credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("credential decryption failed: %w", err)
	}
	if len(creds.PublicKey) != 32 || len(creds.PrivateKey) != 32 || creds.JID == "" {
		return nil, fmt.Errorf("credential decryption failed: invalid key material")
	}
	return &creds, nil
}

// WriteCredentials mints and persists credential material for a session
// directory, as if pairing had already completed there. Useful for
// seeding restore scenarios.
func WriteCredentials(dir, number, domain string) error {
	creds, err := generateCredentials(number, domain)
	if err != nil {
		return err
	}
	return saveCredentials(dir, creds)
}

// saveCredentials writes the credential artifact into dir.
func saveCredentials(dir string, creds *credentials) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, credsFile), data, 0o600)
}
