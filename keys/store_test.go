package keys

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"xdao.co/vcb/proof"
)

func TestStoreRoundTrip(t *testing.T) {
	ks, err := CreateKeyStore(t.TempDir())
	if err != nil {
		t.Fatalf("CreateKeyStore: %v", err)
	}

	root, path, err := ks.InitializeRootKey("dmv", "did:web:dmv.example#key-1", proof.Ed25519, testSeed(3), false)
	if err != nil {
		t.Fatalf("InitializeRootKey: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected key file at %s: %v", path, err)
	}

	loaded, err := ks.Load("dmv", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ID() != root.ID() || !loaded.Public().Equal(root.Public()) {
		t.Fatalf("loaded key differs from stored key")
	}

	if _, _, err := ks.InitializeRootKey("dmv", "x", proof.Ed25519, testSeed(4), false); err == nil {
		t.Fatalf("expected existing key to be kept without overwrite")
	}
}

func TestDeriveRoleKey(t *testing.T) {
	ks := &KeyStore{Directory: t.TempDir()}
	if _, _, err := ks.InitializeRootKey("dmv", "did:web:dmv.example#key-1", proof.Ed25519, testSeed(5), false); err != nil {
		t.Fatalf("InitializeRootKey: %v", err)
	}
	role, _, err := ks.DeriveKeyFromRole("dmv", "status", false)
	if err != nil {
		t.Fatalf("DeriveKeyFromRole: %v", err)
	}
	if role.ID() != "did:web:dmv.example#key-1/status" {
		t.Fatalf("unexpected role key id %q", role.ID())
	}

	again, err := ks.Load("dmv", "status")
	if err != nil {
		t.Fatalf("Load role: %v", err)
	}
	if !again.Public().Equal(role.Public()) {
		t.Fatalf("role key changed across load")
	}

	entries, err := ks.ListKeys()
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(entries) != 1 || entries[0].Identifier != "dmv" || len(entries[0].Roles) != 1 || entries[0].Roles[0] != "status" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].Algorithm != proof.Ed25519 {
		t.Fatalf("unexpected algorithm %s", entries[0].Algorithm)
	}
}

func TestUnseededRootCannotDerive(t *testing.T) {
	ks := &KeyStore{Directory: t.TempDir()}
	k, _, err := ks.GenerateRootKey("ec", "did:web:ec.example#p256", proof.ES256, rand.Reader, false)
	if err != nil {
		t.Fatalf("GenerateRootKey: %v", err)
	}
	if k.Algorithm() != proof.ES256 {
		t.Fatalf("unexpected algorithm %s", k.Algorithm())
	}
	if _, _, err := ks.DeriveKeyFromRole("ec", "status", false); err == nil {
		t.Fatalf("expected derivation from unseeded root to fail")
	}
	pub, fp, err := ks.ExportPublic("ec", "")
	if err != nil {
		t.Fatalf("ExportPublic: %v", err)
	}
	if !pub.Equal(k.Public()) || fp == "" {
		t.Fatalf("unexpected export")
	}
}

func TestLoadSigner(t *testing.T) {
	ks := &KeyStore{Directory: t.TempDir()}
	_, path, err := ks.InitializeRootKey("dmv", "did:web:dmv.example#key-1", proof.Ed25519, testSeed(6), false)
	if err != nil {
		t.Fatalf("InitializeRootKey: %v", err)
	}

	fromFile, err := ks.LoadSigner(path, "", "", "", "")
	if err != nil {
		t.Fatalf("LoadSigner file: %v", err)
	}
	fromName, err := ks.LoadSigner("", "", "", "dmv", "")
	if err != nil {
		t.Fatalf("LoadSigner name: %v", err)
	}
	if !fromFile.Public().Equal(fromName.Public()) {
		t.Fatalf("file and name resolved to different keys")
	}

	seedHex := "0x" + "06070809"
	for i := 4; i < SeedSize; i++ {
		seedHex += "00"
	}
	fromSeed, err := ks.LoadSigner("", seedHex, "k", "", "")
	if err != nil {
		t.Fatalf("LoadSigner seed: %v", err)
	}
	if fromSeed.ID() != "k" || fromSeed.Algorithm() != proof.Ed25519 {
		t.Fatalf("unexpected seed key %q %s", fromSeed.ID(), fromSeed.Algorithm())
	}
	if _, err := ks.LoadSigner("", "0x0607", "k", "", ""); err == nil {
		t.Fatalf("expected short seed to be rejected")
	}
	if _, err := ks.LoadSigner("", "", "", "", ""); err != ErrNoSigner {
		t.Fatalf("expected ErrNoSigner, got %v", err)
	}
}

func TestCorruptRecordRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.key")
	if err := os.WriteFile(path, []byte("not cbor"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected corrupt record to be rejected")
	}
}
