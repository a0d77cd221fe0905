package casconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"xdao.co/vcb/storage"
)

func TestLoadAndOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cas.yaml")
	yml := "backends:\n" +
		"  - name: localfs\n" +
		"    dir: " + filepath.Join(dir, "a") + "\n" +
		"  - name: localfs\n" +
		"    id: shared\n" +
		"    dir: " + filepath.Join(dir, "b") + "\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	s, err := cfg.Open("shared")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	id, err := storage.Publish(ctx, s, "urn:list:1", []byte("list"))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	shared, err := Config{Backends: []BackendConfig{{Name: "localfs", Dir: filepath.Join(dir, "b")}}}.Open("")
	if err != nil {
		t.Fatalf("Open shared: %v", err)
	}
	ok, err := shared.Has(ctx, id)
	if err != nil || !ok {
		t.Fatalf("expected preferred backend to receive the write (ok=%v err=%v)", ok, err)
	}
}

func TestValidate(t *testing.T) {
	bad := []Config{
		{},
		{Backends: []BackendConfig{{Name: ""}}},
		{Backends: []BackendConfig{{Name: "ipfs"}}},
		{Backends: []BackendConfig{{Name: "localfs"}}},
		{Backends: []BackendConfig{{Name: "memory"}, {Name: "memory"}}},
	}
	for i, c := range bad {
		if err := c.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
	if err := (Config{Backends: []BackendConfig{{Name: "memory"}, {Name: "memory", ID: "m2"}}}).Validate(); err != nil {
		t.Fatalf("expected distinct ids to validate: %v", err)
	}
	if _, err := (Config{Backends: []BackendConfig{{Name: "memory"}}}).Open("missing"); err == nil {
		t.Fatalf("expected unknown preferred backend to fail")
	}
}
