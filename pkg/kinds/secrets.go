package kinds

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/ssh"

	"github.com/vcfg/vcfg/pkg/config"
)

// SecretsFileName holds key pairs, both in the project and in the user directory.
const SecretsFileName = "secrets.yaml"

// DefaultKeyPairName names the key pair generated for a new user.
const DefaultKeyPairName = "default"

var (
	// ErrKeyPairExists is returned when a key pair name is already taken.
	ErrKeyPairExists = errors.New("key pair already exists")
	// ErrKeyPairNotFound is returned for an unknown key pair name.
	ErrKeyPairNotFound = errors.New("key pair not found")
	// ErrLastKeyPair is returned when removing the only key pair of a user.
	ErrLastKeyPair = errors.New("at least one key pair is required")
)

const projectSecretsV0 = `
#Config: {
	version:             0
	keyPairs:            [...#KeyPair]
	defaultKeyPairName?: string
}

#KeyPair: {
	name:      string & !=""
	peerId:    string & !=""
	secretKey: string & !=""
}
`

const userSecretsV0 = `
#Config: {
	version:            0
	keyPairs:           [#KeyPair, ...#KeyPair]
	defaultKeyPairName: string & !=""
}

#KeyPair: {
	name:      string & !=""
	peerId:    string & !=""
	secretKey: string & !=""
}
`

const secretsTemplate = `keyPairs:
  - name: deployer
    peerId: SHA256:2YpUxu0fA4cHgOvh6o2o5aKGyKcsZyTxtOJ8TuN6Yw8
    secretKey: base64 encoded ed25519 seed
defaultKeyPairName: deployer # key pair used when none is named`

var projectSecretsKind = &config.Kind[SecretsConfig]{
	Name:     "project-secrets",
	FileName: SecretsFileName,
	Schemas:  config.MustSchemaSet(projectSecretsV0),
	Template: secretsTemplate,
	Perm:     0o600,
}

var userSecretsKind = &config.Kind[SecretsConfig]{
	Name:     "user-secrets",
	FileName: SecretsFileName,
	Schemas:  config.MustSchemaSet(userSecretsV0),
	Template: secretsTemplate,
	Perm:     0o600,
}

// ProjectSecrets returns the kind of the project's secrets store.
func ProjectSecrets() *config.Kind[SecretsConfig] {
	return projectSecretsKind
}

// UserSecrets returns the kind of the user's secrets store. Unlike the
// project store it always holds a default key pair.
func UserSecrets() *config.Kind[SecretsConfig] {
	return userSecretsKind
}

// SecretsConfig is a named set of key pairs with an optional default.
type SecretsConfig struct {
	Version            int       `yaml:"version"`
	KeyPairs           []KeyPair `yaml:"keyPairs" validate:"dive"`
	DefaultKeyPairName string    `yaml:"defaultKeyPairName,omitempty"`
}

// KeyPair is an ed25519 identity. PeerID is the SHA256 fingerprint of the public key.
type KeyPair struct {
	Name      string `yaml:"name" validate:"required"`
	PeerID    string `yaml:"peerId" validate:"required"`
	SecretKey string `yaml:"secretKey" validate:"required"`
}

// NewProjectSecrets returns an empty project secrets store.
func NewProjectSecrets() (SecretsConfig, error) {
	return SecretsConfig{Version: projectSecretsKind.Latest(), KeyPairs: []KeyPair{}}, nil
}

// NewUserSecrets returns a user secrets store with one freshly generated default key pair.
func NewUserSecrets() (SecretsConfig, error) {
	kp, err := GenerateKeyPair(DefaultKeyPairName)
	if err != nil {
		return SecretsConfig{}, err
	}
	return SecretsConfig{
		Version:            userSecretsKind.Latest(),
		KeyPairs:           []KeyPair{kp},
		DefaultKeyPairName: kp.Name,
	}, nil
}

// GenerateKeyPair creates a new ed25519 key pair.
func GenerateKeyPair(name string) (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("failed to generate key pair: %w", err)
	}
	peerID, err := PeerID(pub)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{
		Name:      name,
		PeerID:    peerID,
		SecretKey: base64.StdEncoding.EncodeToString(priv.Seed()),
	}, nil
}

// PeerID returns the identifier derived from a public key.
func PeerID(pub ed25519.PublicKey) (string, error) {
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to encode public key: %w", err)
	}
	return ssh.FingerprintSHA256(sshPub), nil
}

// PrivateKey decodes the stored seed.
func (kp KeyPair) PrivateKey() (ed25519.PrivateKey, error) {
	seed, err := base64.StdEncoding.DecodeString(kp.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("key pair %s: invalid secret key: %w", kp.Name, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("key pair %s: secret key is %d bytes, expected %d", kp.Name, len(seed), ed25519.SeedSize)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// KeyPair returns the key pair called name.
func (s *SecretsConfig) KeyPair(name string) (KeyPair, bool) {
	for _, kp := range s.KeyPairs {
		if kp.Name == name {
			return kp, true
		}
	}
	return KeyPair{}, false
}

// Default returns the default key pair, if one is set.
func (s *SecretsConfig) Default() (KeyPair, bool) {
	if s.DefaultKeyPairName == "" {
		return KeyPair{}, false
	}
	return s.KeyPair(s.DefaultKeyPairName)
}

// Add appends a key pair. The first key pair of a store becomes its default.
func (s *SecretsConfig) Add(kp KeyPair) error {
	if _, ok := s.KeyPair(kp.Name); ok {
		return fmt.Errorf("%w: %s", ErrKeyPairExists, kp.Name)
	}
	s.KeyPairs = append(s.KeyPairs, kp)
	if s.DefaultKeyPairName == "" {
		s.DefaultKeyPairName = kp.Name
	}
	return nil
}

// SetDefault makes name the default key pair.
func (s *SecretsConfig) SetDefault(name string) error {
	if _, ok := s.KeyPair(name); !ok {
		return fmt.Errorf("%w: %s", ErrKeyPairNotFound, name)
	}
	s.DefaultKeyPairName = name
	return nil
}

// Remove deletes the key pair called name. With keepOne the last key pair
// cannot be removed. Removing the default promotes the first remaining key
// pair; removing the last one clears the default.
func (s *SecretsConfig) Remove(name string, keepOne bool) error {
	if _, ok := s.KeyPair(name); !ok {
		return fmt.Errorf("%w: %s", ErrKeyPairNotFound, name)
	}
	if keepOne && len(s.KeyPairs) == 1 {
		return fmt.Errorf("cannot remove %s: %w", name, ErrLastKeyPair)
	}

	kept := s.KeyPairs[:0]
	for _, kp := range s.KeyPairs {
		if kp.Name != name {
			kept = append(kept, kp)
		}
	}
	s.KeyPairs = kept

	switch {
	case len(s.KeyPairs) == 0:
		s.DefaultKeyPairName = ""
	case s.DefaultKeyPairName == name:
		s.DefaultKeyPairName = s.KeyPairs[0].Name
	}
	return nil
}

// ResolveKeyPair picks the key pair to deploy with. A named key pair is looked
// up in the project store first, then in the user store. Without a name the
// project default wins over the user default.
func ResolveKeyPair(project *SecretsConfig, user *SecretsConfig, name string) (KeyPair, error) {
	stores := []*SecretsConfig{project, user}
	for _, s := range stores {
		if s == nil {
			continue
		}
		if name != "" {
			if kp, ok := s.KeyPair(name); ok {
				return kp, nil
			}
			continue
		}
		if kp, ok := s.Default(); ok {
			return kp, nil
		}
	}
	if name == "" {
		return KeyPair{}, fmt.Errorf("%w: no default key pair", ErrKeyPairNotFound)
	}
	return KeyPair{}, fmt.Errorf("%w: %s", ErrKeyPairNotFound, name)
}
