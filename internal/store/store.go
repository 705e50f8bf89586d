// Package store persists attempt snapshots to a local bbolt database so
// a crashed or reloaded session can resume without losing answers.
// Snapshots are sealed at rest: the deadline lives inside the
// ciphertext, so editing the store file cannot buy extra time.
package store

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-agent/internal/config"
	"github.com/stemsi/exstem-agent/internal/model"
	"go.etcd.io/bbolt"
)

var (
	bucketSnapshots = []byte("snapshots")
	bucketFlags     = []byte("flags")
)

// Store is the durable key/value surface for attempt snapshots and the
// process-wide examActive flag. It is a dumb store: all session policy
// (when to save, what failures mean) belongs to the caller.
type Store struct {
	db  *bbolt.DB
	key []byte
	log zerolog.Logger
}

// Open opens (or creates) the bbolt database at path. The secret seals
// snapshot records at rest.
func Open(path, secret string, log zerolog.Logger) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketSnapshots, bucketFlags} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init snapshot store: %w", err)
	}
	return &Store{
		db:  db,
		key: deriveKey(secret),
		log: log.With().Str("component", "store").Logger(),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save seals and writes the snapshot for a test. Any prior snapshot is
// overwritten.
func (s *Store) Save(testID string, snap *model.Snapshot) error {
	plaintext, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	key := config.StoreKey.SnapshotKey(testID)
	env, err := seal(s.key, plaintext, []byte(key))
	if err != nil {
		return fmt.Errorf("seal snapshot: %w", err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Put([]byte(key), data)
	})
}

// Load returns the stored snapshot for a test, or (nil, nil) when no
// usable snapshot exists. A snapshot that fails to unseal or carries an
// unknown schema version is treated as absent, not as an error: resume
// is best-effort and must never block a fresh start.
func (s *Store) Load(testID string) (*model.Snapshot, error) {
	key := config.StoreKey.SnapshotKey(testID)

	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if data := tx.Bucket(bucketSnapshots).Get([]byte(key)); data != nil {
			raw = append(raw, data...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if raw == nil {
		return nil, nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.log.Warn().Err(err).Str("test_id", testID).Msg("Discarding malformed snapshot envelope")
		return nil, nil
	}
	plaintext, err := open(s.key, &env, []byte(key))
	if err != nil {
		s.log.Warn().Err(err).Str("test_id", testID).Msg("Discarding snapshot that failed to unseal")
		return nil, nil
	}

	var snap model.Snapshot
	if err := json.Unmarshal(plaintext, &snap); err != nil {
		s.log.Warn().Err(err).Str("test_id", testID).Msg("Discarding undecodable snapshot")
		return nil, nil
	}
	if snap.Ver != model.SnapshotSchemaVersion {
		s.log.Warn().Int("ver", snap.Ver).Str("test_id", testID).Msg("Discarding snapshot with unknown schema version")
		return nil, nil
	}
	return &snap, nil
}

// Clear deletes the snapshot for a test. Clearing an absent snapshot is
// a no-op.
func (s *Store) Clear(testID string) error {
	key := config.StoreKey.SnapshotKey(testID)
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Delete([]byte(key))
	})
}

// SetExamActive sets or clears the process-wide active-attempt flag.
func (s *Store) SetExamActive(active bool) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketFlags)
		if active {
			return b.Put([]byte(config.StoreKey.ExamActiveFlag), []byte("1"))
		}
		return b.Delete([]byte(config.StoreKey.ExamActiveFlag))
	})
}

// ExamActive reports whether an attempt is currently marked active.
func (s *Store) ExamActive() (bool, error) {
	var active bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		active = tx.Bucket(bucketFlags).Get([]byte(config.StoreKey.ExamActiveFlag)) != nil
		return nil
	})
	return active, err
}
