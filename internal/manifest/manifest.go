// Package manifest records completed builds in a project-local bbolt
// database. The record ties an output tree to the key-material
// fingerprint and content hashes that produced it, which is what
// drift verification and `modshield builds` read back.
package manifest

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// DBFile is the manifest database name, created next to the source
// module.
const DBFile = ".modshield.db"

var (
	buildsBucket = []byte("builds")
	configBucket = []byte("config")
)

var configVersion = []byte("version")

// Build is one recorded pipeline run.
type Build struct {
	CreatedAt      time.Time         `json:"created_at"`
	Module         string            `json:"module"`
	OutputDir      string            `json:"output_dir"`
	Encrypted      int               `json:"encrypted"`
	Copied         int               `json:"copied"`
	KeyFingerprint string            `json:"key_fingerprint"`
	Expiration     string            `json:"expiration,omitempty"`
	Wheel          string            `json:"wheel"`
	Hashes         map[string]string `json:"hashes"`
}

// Manifest provides bbolt-backed build records.
type Manifest struct {
	db *bolt.DB
}

// Open opens or creates the manifest database.
func Open(path string) (*Manifest, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{buildsBucket, configBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return tx.Bucket(configBucket).Put(configVersion, []byte("1"))
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Manifest{db: db}, nil
}

// Close closes the database.
func (m *Manifest) Close() error {
	return m.db.Close()
}

// Record stores one build, keyed by its creation instant.
func (m *Manifest) Record(b Build) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal build record: %w", err)
	}

	return m.db.Update(func(tx *bolt.Tx) error {
		key := []byte(b.CreatedAt.UTC().Format(time.RFC3339Nano))
		return tx.Bucket(buildsBucket).Put(key, data)
	})
}

// List returns all recorded builds, oldest first.
func (m *Manifest) List() ([]Build, error) {
	var builds []Build
	err := m.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(buildsBucket).ForEach(func(k, v []byte) error {
			var b Build
			if err := json.Unmarshal(v, &b); err != nil {
				return fmt.Errorf("corrupt build record %s: %w", k, err)
			}
			builds = append(builds, b)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return builds, nil
}

// Latest returns the most recent build, or nil when none exist.
func (m *Manifest) Latest() (*Build, error) {
	var latest *Build
	err := m.db.View(func(tx *bolt.Tx) error {
		k, v := tx.Bucket(buildsBucket).Cursor().Last()
		if k == nil {
			return nil
		}
		var b Build
		if err := json.Unmarshal(v, &b); err != nil {
			return fmt.Errorf("corrupt build record %s: %w", k, err)
		}
		latest = &b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return latest, nil
}
