// Package casconfig opens a storage.Store from configuration, so the CLI and
// the trust daemon can pick their backends at runtime.
package casconfig

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"xdao.co/vcb/storage"
	"xdao.co/vcb/storage/localfs"
	"xdao.co/vcb/storage/memory"
)

// Config lists backends in read order. Writes and name bindings go to the
// first backend; reads fall back in order (see storage.Multi).
//
// Example:
//
//	backends:
//	  - name: localfs
//	    dir: /var/lib/vcb/cas
//	  - name: localfs
//	    id: shared
//	    dir: /mnt/shared/vcb
type Config struct {
	Backends []BackendConfig `yaml:"backends"`
}

type BackendConfig struct {
	// Name is the backend kind: "localfs" or "memory".
	Name string `yaml:"name"`
	// ID is an optional alias; it defaults to Name and must be unique.
	ID  string `yaml:"id,omitempty"`
	Dir string `yaml:"dir,omitempty"`
}

func (b BackendConfig) id() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

func LoadFile(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("casconfig: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("casconfig: %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("casconfig: at least one backend is required")
	}
	seen := make(map[string]struct{}, len(c.Backends))
	for _, b := range c.Backends {
		switch b.Name {
		case "localfs":
			if b.Dir == "" {
				return fmt.Errorf("casconfig: backend %q requires dir", b.id())
			}
		case "memory":
		case "":
			return errors.New("casconfig: backend name is required")
		default:
			return fmt.Errorf("casconfig: unknown backend %q", b.Name)
		}
		if _, ok := seen[b.id()]; ok {
			return fmt.Errorf("casconfig: duplicate backend id %q", b.id())
		}
		seen[b.id()] = struct{}{}
	}
	return nil
}

// Open opens every backend. If preferred is non-empty, the backend with that
// name or id is moved first and so receives writes.
func (c Config) Open(preferred string) (storage.Store, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	ordered := append([]BackendConfig(nil), c.Backends...)
	if preferred != "" {
		idx := -1
		for i := range ordered {
			if ordered[i].Name == preferred || ordered[i].ID == preferred {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("casconfig: preferred backend %q not found in config", preferred)
		}
		if idx != 0 {
			b := ordered[idx]
			copy(ordered[1:idx+1], ordered[0:idx])
			ordered[0] = b
		}
	}

	stores := make([]storage.Store, 0, len(ordered))
	for _, b := range ordered {
		s, err := open(b)
		if err != nil {
			return nil, err
		}
		stores = append(stores, s)
	}
	if len(stores) == 1 {
		return stores[0], nil
	}
	return storage.Multi{Stores: stores}, nil
}

func open(b BackendConfig) (storage.Store, error) {
	switch b.Name {
	case "localfs":
		s, err := localfs.New(b.Dir)
		if err != nil {
			return nil, fmt.Errorf("casconfig: open %q: %w", b.id(), err)
		}
		return s, nil
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("casconfig: unknown backend %q", b.Name)
	}
}
