package keys

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"xdao.co/vcb/internal/codec"
	"xdao.co/vcb/proof"
)

// KeyStore keeps signing keys under Directory:
//
//	<name>/root.key
//	<name>/roles/<role>.key
//
// Each file is one CBOR record.
type KeyStore struct {
	Directory string
}

type KeyEntry struct {
	Identifier string
	KeyID      string
	Algorithm  proof.Algorithm
	Roles      []string
}

const recordVersion = 1

type record struct {
	Version   int    `cbor:"1,keyasint"`
	KeyID     string `cbor:"2,keyasint"`
	Algorithm string `cbor:"3,keyasint"`
	Key       []byte `cbor:"4,keyasint"`
	Seed      []byte `cbor:"5,keyasint,omitempty"`
}

// ErrNoSigner means LoadSigner was given nothing to load.
var ErrNoSigner = errors.New("no signer provided")

func GetDefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".xdao", "vcb", "keys"), nil
}

func CreateKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = GetDefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func (ks *KeyStore) rootPath(identifier string) string {
	return filepath.Join(ks.Directory, identifier, "root.key")
}

func (ks *KeyStore) rolePath(identifier, role string) string {
	return filepath.Join(ks.Directory, identifier, "roles", role+".key")
}

func checkName(kind, s string) error {
	if s == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}
	for _, char := range s {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in %s", char, kind)
	}
	return nil
}

func CheckKeyName(identifier string) error { return checkName("identifier", identifier) }

func CheckRole(role string) error { return checkName("role", role) }

// ParseSeedHex accepts a 32-byte seed in hex, with or without 0x.
func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimPrefix(strings.TrimSpace(seedHex), "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", SeedSize, len(data))
	}
	return data, nil
}

func writeRecord(path string, r record, overwrite bool) error {
	data, err := codec.Marshal(r)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.Write(data); err != nil {
		return err
	}
	return file.Close()
}

func readRecord(path string) (record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return record{}, err
	}
	var r record
	if err := codec.Unmarshal(data, &r); err != nil {
		return record{}, fmt.Errorf("%s: %w", path, err)
	}
	if r.Version != recordVersion {
		return record{}, fmt.Errorf("%s: unsupported key record version %d", path, r.Version)
	}
	return r, nil
}

func toRecord(k *proof.PrivateKey, seed []byte) (record, error) {
	b, err := k.MarshalBinary()
	if err != nil {
		return record{}, err
	}
	return record{Version: recordVersion, KeyID: k.ID(), Algorithm: k.Algorithm().String(), Key: b, Seed: seed}, nil
}

func (r record) key() (*proof.PrivateKey, error) {
	k, err := proof.ParsePrivateKey(r.KeyID, r.Key)
	if err != nil {
		return nil, err
	}
	if k.Algorithm().String() != r.Algorithm {
		return nil, fmt.Errorf("key record algorithm %q does not match key %s", r.Algorithm, k.Algorithm())
	}
	return k, nil
}

// InitializeRootKey stores a root key built from seed. Root keys created
// this way can derive role keys.
func (ks *KeyStore) InitializeRootKey(identifier, keyID string, alg proof.Algorithm, seed []byte, overwrite bool) (*proof.PrivateKey, string, error) {
	if err := CheckKeyName(identifier); err != nil {
		return nil, "", err
	}
	k, err := KeyFromSeed(alg, keyID, seed)
	if err != nil {
		return nil, "", err
	}
	r, err := toRecord(k, seed)
	if err != nil {
		return nil, "", err
	}
	path := ks.rootPath(identifier)
	if err := writeRecord(path, r, overwrite); err != nil {
		return nil, "", err
	}
	return k, path, nil
}

// GenerateRootKey stores a fresh random key. For algorithms that support
// seeds the seed is kept so role keys can be derived.
func (ks *KeyStore) GenerateRootKey(identifier, keyID string, alg proof.Algorithm, rand io.Reader, overwrite bool) (*proof.PrivateKey, string, error) {
	if err := CheckKeyName(identifier); err != nil {
		return nil, "", err
	}
	if alg == proof.Ed25519 || alg == proof.Dilithium3 {
		seed := make([]byte, SeedSize)
		if _, err := io.ReadFull(rand, seed); err != nil {
			return nil, "", err
		}
		return ks.InitializeRootKey(identifier, keyID, alg, seed, overwrite)
	}
	k, err := proof.GenerateKey(alg, keyID, rand)
	if err != nil {
		return nil, "", err
	}
	r, err := toRecord(k, nil)
	if err != nil {
		return nil, "", err
	}
	path := ks.rootPath(identifier)
	if err := writeRecord(path, r, overwrite); err != nil {
		return nil, "", err
	}
	return k, path, nil
}

// DeriveKeyFromRole derives and stores the role key of a seeded root key.
// The role key id is the root key id with "/<role>" appended.
func (ks *KeyStore) DeriveKeyFromRole(from, role string, overwrite bool) (*proof.PrivateKey, string, error) {
	if err := CheckKeyName(from); err != nil {
		return nil, "", err
	}
	if err := CheckRole(role); err != nil {
		return nil, "", err
	}
	root, err := readRecord(ks.rootPath(from))
	if err != nil {
		return nil, "", err
	}
	if len(root.Seed) == 0 {
		return nil, "", fmt.Errorf("root key %q has no seed; role keys need a seeded root", from)
	}
	alg, err := proof.ParseAlgorithm(root.Algorithm)
	if err != nil {
		return nil, "", err
	}
	roleSeed, err := DeriveRoleSeed(root.Seed, role)
	if err != nil {
		return nil, "", err
	}
	k, err := KeyFromSeed(alg, root.KeyID+"/"+role, roleSeed)
	if err != nil {
		return nil, "", err
	}
	r, err := toRecord(k, roleSeed)
	if err != nil {
		return nil, "", err
	}
	path := ks.rolePath(from, role)
	if err := writeRecord(path, r, overwrite); err != nil {
		return nil, "", err
	}
	return k, path, nil
}

// Load returns the root key of identifier, or its role key when role is set.
func (ks *KeyStore) Load(identifier, role string) (*proof.PrivateKey, error) {
	if err := CheckKeyName(identifier); err != nil {
		return nil, err
	}
	path := ks.rootPath(identifier)
	if role != "" {
		if err := CheckRole(role); err != nil {
			return nil, err
		}
		path = ks.rolePath(identifier, role)
	}
	return LoadFile(path)
}

// LoadFile reads one key record.
func LoadFile(path string) (*proof.PrivateKey, error) {
	r, err := readRecord(path)
	if err != nil {
		return nil, err
	}
	return r.key()
}

// LoadSigner resolves a signing key from, in order: a key file, a hex seed
// (Ed25519, bound to keyID), or a stored identifier and role.
func (ks *KeyStore) LoadSigner(keyFile, seedHex, keyID, identifier, role string) (*proof.PrivateKey, error) {
	switch {
	case keyFile != "":
		return LoadFile(keyFile)
	case seedHex != "":
		seed, err := ParseSeedHex(seedHex)
		if err != nil {
			return nil, err
		}
		return KeyFromSeed(proof.Ed25519, keyID, seed)
	case identifier != "":
		return ks.Load(identifier, role)
	}
	return nil, ErrNoSigner
}

// ExportPublic returns the marshalled public key and its fingerprint.
func (ks *KeyStore) ExportPublic(identifier, role string) (*proof.PublicKey, string, error) {
	k, err := ks.Load(identifier, role)
	if err != nil {
		return nil, "", err
	}
	fp, err := Fingerprint(k.Public())
	if err != nil {
		return nil, "", err
	}
	return k.Public(), fp, nil
}

func (ks *KeyStore) ListKeys() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var identifiers []string
	for _, entry := range entries {
		if entry.IsDir() {
			identifiers = append(identifiers, entry.Name())
		}
	}
	sort.Strings(identifiers)

	var result []KeyEntry
	for _, identifier := range identifiers {
		root, err := readRecord(ks.rootPath(identifier))
		if err != nil {
			continue
		}
		alg, _ := proof.ParseAlgorithm(root.Algorithm)
		var roles []string
		roleEntries, rerr := os.ReadDir(filepath.Join(ks.Directory, identifier, "roles"))
		if rerr == nil {
			for _, roleEntry := range roleEntries {
				if !roleEntry.IsDir() && strings.HasSuffix(roleEntry.Name(), ".key") {
					roles = append(roles, strings.TrimSuffix(roleEntry.Name(), ".key"))
				}
			}
			sort.Strings(roles)
		}
		result = append(result, KeyEntry{Identifier: identifier, KeyID: root.KeyID, Algorithm: alg, Roles: roles})
	}
	return result, nil
}
