package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.etcd.io/bbolt"

	"sopqa/internal/domain"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSnapshot() domain.IndexSnapshot {
	return domain.IndexSnapshot{
		RunID:     "run-1",
		Model:     "mock",
		Dimension: 2,
		SavedAt:   time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		Passages: []domain.Passage{
			{ID: "p0", Source: "a.txt", Ordinal: 0, Start: 0, End: 10, Text: "first part"},
			{ID: "p1", Source: "a.txt", Ordinal: 1, Start: 8, End: 18, Text: "rt second"},
			{ID: "p2", Source: "b.txt", Ordinal: 0, Start: 0, End: 5, Text: "other"},
		},
		Vectors: [][]float32{{1, 0}, {0.5, 0.5}, {0, 1}},
	}
}

func TestLoadBeforeSaveIsNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Load()
	if !errors.Is(err, domain.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	want := testSnapshot()

	if err := s.Save(want); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}

	if got.RunID != want.RunID || got.Model != want.Model || got.Dimension != want.Dimension {
		t.Errorf("meta differs: got %+v", got)
	}
	if !got.SavedAt.Equal(want.SavedAt) {
		t.Errorf("saved_at differs: got %v, want %v", got.SavedAt, want.SavedAt)
	}
	if len(got.Passages) != len(want.Passages) || len(got.Vectors) != len(want.Vectors) {
		t.Fatalf("shape differs: %d/%d passages, %d/%d vectors",
			len(got.Passages), len(want.Passages), len(got.Vectors), len(want.Vectors))
	}
	for i := range want.Passages {
		if got.Passages[i] != want.Passages[i] {
			t.Errorf("passage %d differs: %+v", i, got.Passages[i])
		}
		for j := range want.Vectors[i] {
			if got.Vectors[i][j] != want.Vectors[i][j] {
				t.Errorf("vector %d differs", i)
			}
		}
	}
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	s := newTestStore(t)

	if err := s.Save(testSnapshot()); err != nil {
		t.Fatal(err)
	}

	smaller := domain.IndexSnapshot{
		RunID:     "run-2",
		Model:     "mock",
		Dimension: 2,
		SavedAt:   time.Now().UTC(),
		Passages:  []domain.Passage{{ID: "q0", Source: "c.txt", Text: "replacement"}},
		Vectors:   [][]float32{{1, 1}},
	}
	if err := s.Save(smaller); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.RunID != "run-2" || len(got.Passages) != 1 {
		t.Errorf("old snapshot leaked into load: %+v", got)
	}
}

func TestSaveRejectsMismatchedSnapshot(t *testing.T) {
	s := newTestStore(t)

	snap := testSnapshot()
	snap.Vectors = snap.Vectors[:2]
	if err := s.Save(snap); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestListSources(t *testing.T) {
	s := newTestStore(t)

	sources, err := s.ListSources()
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 0 {
		t.Errorf("expected no sources before save, got %v", sources)
	}

	if err := s.Save(testSnapshot()); err != nil {
		t.Fatal(err)
	}

	sources, err = s.ListSources()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.txt", "b.txt"}
	if len(sources) != len(want) {
		t.Fatalf("got %v, want %v", sources, want)
	}
	for i := range want {
		if sources[i] != want[i] {
			t.Errorf("got %v, want %v", sources, want)
		}
	}
}

func TestLoadDetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(testSnapshot()); err != nil {
		t.Fatal(err)
	}

	// Damage one vector behind the store's back.
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVectors).Put(itob(1), []byte("not json"))
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Load(); !errors.Is(err, domain.ErrCorruptIndex) {
		t.Errorf("expected ErrCorruptIndex, got %v", err)
	}
	s.Close()

	// A missing vector for a stored passage is also corruption.
	s2, err := NewBoltStore(filepath.Join(t.TempDir(), "index2.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if err := s2.Save(testSnapshot()); err != nil {
		t.Fatal(err)
	}
	err = s2.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVectors).Delete(itob(2))
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s2.Load(); !errors.Is(err, domain.ErrCorruptIndex) {
		t.Errorf("expected ErrCorruptIndex for missing vector, got %v", err)
	}
}
