package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

const stagesBucket = "run_stages"

// Checkpoints persists per-stage results of a run so an interrupted analysis
// resumes where it stopped instead of re-fetching everything.
type Checkpoints struct {
	db *bolt.DB
}

// OpenCheckpoints opens (creating if needed) the checkpoint database.
func OpenCheckpoints(path string) (*Checkpoints, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	db, err := bolt.Open(path, 0644, nil)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}
	return &Checkpoints{db: db}, nil
}

// Close closes the underlying database.
func (c *Checkpoints) Close() error {
	return c.db.Close()
}

func stageKey(runID, stage string) []byte {
	return []byte(runID + "/" + stage)
}

// SaveStage records a completed stage's payload.
func (c *Checkpoints) SaveStage(runID, stage string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s checkpoint: %w", stage, err)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(stagesBucket))
		if err != nil {
			return err
		}
		return bucket.Put(stageKey(runID, stage), data)
	})
}

// LoadStage restores a stage's payload into out. The bool reports whether
// the stage had been checkpointed.
func (c *Checkpoints) LoadStage(runID, stage string, out any) (bool, error) {
	var data []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(stagesBucket))
		if bucket == nil {
			return nil
		}
		if raw := bucket.Get(stageKey(runID, stage)); raw != nil {
			data = append([]byte(nil), raw...)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("unmarshal %s checkpoint: %w", stage, err)
	}
	return true, nil
}

// Clear removes all checkpoints for a run, typically after it completes.
func (c *Checkpoints) Clear(runID string) error {
	prefix := []byte(runID + "/")
	return c.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(stagesBucket))
		if bucket == nil {
			return nil
		}
		cur := bucket.Cursor()
		for k, _ := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cur.Next() {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
