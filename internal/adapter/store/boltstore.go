// Package store persists the vector index and its passages in bbolt.
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"sopqa/internal/domain"
)

var (
	bucketMeta     = []byte("meta")
	bucketPassages = []byte("passages")
	bucketVectors  = []byte("vectors")
	keyMeta        = []byte("index_meta")
)

type BoltStore struct {
	db *bbolt.DB
}

// indexMeta is written last inside the save transaction; its presence is
// what makes a snapshot loadable at all.
type indexMeta struct {
	RunID        string    `json:"run_id"`
	Model        string    `json:"model"`
	Dimension    int       `json:"dimension"`
	SavedAt      time.Time `json:"saved_at"`
	PassageCount int       `json:"passage_count"`
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Save replaces the persisted snapshot in one write transaction. bbolt
// commits transactions atomically, so a crash mid-save leaves either the
// old snapshot or the new one, never a mix.
func (s *BoltStore) Save(snap domain.IndexSnapshot) error {
	if len(snap.Passages) != len(snap.Vectors) {
		return fmt.Errorf("%w: %d passages but %d vectors",
			domain.ErrInvalidInput, len(snap.Passages), len(snap.Vectors))
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketPassages, bucketVectors} {
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return fmt.Errorf("failed to drop bucket %s: %w", name, err)
				}
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}

		passages := tx.Bucket(bucketPassages)
		vectors := tx.Bucket(bucketVectors)
		for i, p := range snap.Passages {
			key := itob(uint64(i))

			pdata, err := json.Marshal(p)
			if err != nil {
				return err
			}
			if err := passages.Put(key, pdata); err != nil {
				return err
			}

			vdata, err := json.Marshal(snap.Vectors[i])
			if err != nil {
				return err
			}
			if err := vectors.Put(key, vdata); err != nil {
				return err
			}
		}

		meta := indexMeta{
			RunID:        snap.RunID,
			Model:        snap.Model,
			Dimension:    snap.Dimension,
			SavedAt:      snap.SavedAt,
			PassageCount: len(snap.Passages),
		}
		mdata, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyMeta, mdata)
	})
}

// Load restores the last saved snapshot. domain.ErrIndexNotFound means no
// save ever completed; domain.ErrCorruptIndex means the persisted state
// contradicts itself.
func (s *BoltStore) Load() (domain.IndexSnapshot, error) {
	var snap domain.IndexSnapshot

	err := s.db.View(func(tx *bbolt.Tx) error {
		mb := tx.Bucket(bucketMeta)
		if mb == nil {
			return domain.ErrIndexNotFound
		}
		mdata := mb.Get(keyMeta)
		if mdata == nil {
			return domain.ErrIndexNotFound
		}

		var meta indexMeta
		if err := json.Unmarshal(mdata, &meta); err != nil {
			return fmt.Errorf("%w: unreadable meta: %v", domain.ErrCorruptIndex, err)
		}

		passages := tx.Bucket(bucketPassages)
		vectors := tx.Bucket(bucketVectors)
		if passages == nil || vectors == nil {
			return fmt.Errorf("%w: missing data buckets", domain.ErrCorruptIndex)
		}

		snap = domain.IndexSnapshot{
			RunID:     meta.RunID,
			Model:     meta.Model,
			Dimension: meta.Dimension,
			SavedAt:   meta.SavedAt,
		}

		err := passages.ForEach(func(k, v []byte) error {
			var p domain.Passage
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("%w: unreadable passage %d: %v", domain.ErrCorruptIndex, btoi(k), err)
			}
			snap.Passages = append(snap.Passages, p)

			vdata := vectors.Get(k)
			if vdata == nil {
				return fmt.Errorf("%w: passage %d has no vector", domain.ErrCorruptIndex, btoi(k))
			}
			var vec []float32
			if err := json.Unmarshal(vdata, &vec); err != nil {
				return fmt.Errorf("%w: unreadable vector %d: %v", domain.ErrCorruptIndex, btoi(k), err)
			}
			if len(vec) != meta.Dimension {
				return fmt.Errorf("%w: vector %d has dimension %d, expected %d",
					domain.ErrCorruptIndex, btoi(k), len(vec), meta.Dimension)
			}
			snap.Vectors = append(snap.Vectors, vec)
			return nil
		})
		if err != nil {
			return err
		}

		if len(snap.Passages) != meta.PassageCount {
			return fmt.Errorf("%w: meta records %d passages, found %d",
				domain.ErrCorruptIndex, meta.PassageCount, len(snap.Passages))
		}
		return nil
	})
	if err != nil {
		return domain.IndexSnapshot{}, err
	}
	return snap, nil
}

// ListSources returns document identifiers from the persisted passages in
// first-seen order. An unsaved store yields an empty list.
func (s *BoltStore) ListSources() ([]string, error) {
	sources := []string{}
	seen := make(map[string]struct{})

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPassages)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var p domain.Passage
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("%w: unreadable passage %d: %v", domain.ErrCorruptIndex, btoi(k), err)
			}
			if _, ok := seen[p.Source]; !ok {
				seen[p.Source] = struct{}{}
				sources = append(sources, p.Source)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return sources, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
