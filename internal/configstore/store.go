package configstore

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Store is the external configuration store interface consumed by the
// Refresher. It exposes the two read-only queries spec.md §6 requires:
// list backends with their models and timeout, and list authorized
// users. A database-backed admin API could implement this directly;
// this module ships FileStore as the reference implementation.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// yamlBackend and yamlUser mirror the on-disk shape of the config
// file. Kept separate from Backend/AuthorizedUsers so the in-memory
// types can stay free of serialization tags.
type yamlBackend struct {
	Name               string   `yaml:"name"`
	URL                string   `yaml:"url"`
	Models             []string `yaml:"models"`
	TimeoutSeconds     int      `yaml:"timeout_seconds,omitempty"`
	RateLimitPerSecond int      `yaml:"rate_limit_per_second,omitempty"`
}

type yamlUser struct {
	Username string `yaml:"username"`
	Key      string `yaml:"key"`
}

type yamlDocument struct {
	RetryAttempts    int           `yaml:"retry_attempts"`
	SecurityDisabled bool          `yaml:"security_disabled"`
	Backends         []yamlBackend `yaml:"backends"`
	Users            []yamlUser    `yaml:"users"`
}

// FileStore loads the backend/user inventory from a YAML file on
// disk, re-reading it on every Load call. It is the stand-in for the
// out-of-scope configuration database.
type FileStore struct {
	Path string
}

// NewFileStore returns a Store backed by the YAML document at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Load(ctx context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("configstore: failed to read %s: %w", s.Path, err)
	}

	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("configstore: failed to parse %s: %w", s.Path, err)
	}

	snap := &Snapshot{
		RetryAttempts:    doc.RetryAttempts,
		SecurityDisabled: doc.SecurityDisabled,
		Users:            make(AuthorizedUsers, len(doc.Users)),
	}
	if snap.RetryAttempts < 1 {
		snap.RetryAttempts = 1
	}

	for _, b := range doc.Backends {
		models := make(map[string]struct{}, len(b.Models))
		for _, m := range b.Models {
			models[m] = struct{}{}
		}
		snap.Backends = append(snap.Backends, &Backend{
			Name:               b.Name,
			URL:                b.URL,
			Models:             models,
			TimeoutSeconds:     b.TimeoutSeconds,
			RateLimitPerSecond: b.RateLimitPerSecond,
		})
	}
	for _, u := range doc.Users {
		snap.Users[u.Username] = u.Key
	}

	return snap, nil
}

// Save writes the snapshot back out as YAML, used by proxyctl to
// persist edits made through its interactive forms.
func Save(path string, snap *Snapshot) error {
	doc := yamlDocument{
		RetryAttempts:    snap.RetryAttempts,
		SecurityDisabled: snap.SecurityDisabled,
	}
	for _, b := range snap.Backends {
		models := make([]string, 0, len(b.Models))
		for m := range b.Models {
			models = append(models, m)
		}
		doc.Backends = append(doc.Backends, yamlBackend{
			Name:               b.Name,
			URL:                b.URL,
			Models:             models,
			TimeoutSeconds:     b.TimeoutSeconds,
			RateLimitPerSecond: b.RateLimitPerSecond,
		})
	}
	for username, key := range snap.Users {
		doc.Users = append(doc.Users, yamlUser{Username: username, Key: key})
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("configstore: failed to marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("configstore: failed to write %s: %w", path, err)
	}
	return nil
}
