// Package audit provides a bbolt-backed history sink for finished
// tasks. It is strictly a diagnostics tap: the registry never reads
// from it and no task is ever reconstructed from it at startup, so
// losing the audit file costs an operator nothing but history.
package audit

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hacluster/pcsd/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var bucketFinishedTasks = []byte("finished_tasks")

// Record is one line of finished-task history.
type Record struct {
	TaskID       types.TaskID
	Command      string
	AuthUser     string
	State        types.TaskState
	FinishType   types.TaskFinishType
	KillReason   types.TaskKillReason
	CorrelationID string
	CreatedAt    time.Time
	FinishedAt   time.Time
}

// Store appends finished-task records to a bbolt file and lists them
// back out for operator inspection (e.g. a "pcsd history" subcommand).
type Store struct {
	db *bolt.DB
}

// Open creates or opens the audit database under dataDir.
func Open(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, "pcsd-audit.db")
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketFinishedTasks)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append records one finished task. Keys are the task id, so a record
// is naturally idempotent if the same task is ever recorded twice.
func (s *Store) Append(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("audit: marshal record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFinishedTasks)
		return b.Put([]byte(rec.TaskID), data)
	})
}

// List returns every recorded history entry in bbolt key order, i.e.
// byte order of the task ids. For uuid task ids that order is not
// chronological; callers that care about order should sort on
// FinishedAt.
func (s *Store) List() ([]Record, error) {
	var out []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFinishedTasks)
		return b.ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

// Get returns the recorded history entry for a single task id, if any.
func (s *Store) Get(id types.TaskID) (Record, bool, error) {
	var rec Record
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFinishedTasks)
		data := b.Get([]byte(id))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	return rec, found, err
}
