package port

import "sopqa/internal/domain"

// IndexStore persists the vector index and its passages across restarts.
type IndexStore interface {
	// Save writes the snapshot in a single transaction, replacing any
	// previous state. A crash mid-save must never leave a loadable but
	// inconsistent index.
	Save(snap domain.IndexSnapshot) error

	// Load restores the last saved snapshot. Returns
	// domain.ErrIndexNotFound if nothing was ever saved, and
	// domain.ErrCorruptIndex if persisted state cannot be trusted.
	Load() (domain.IndexSnapshot, error)

	// ListSources returns the document identifiers represented in the
	// persisted passages, in first-seen order. Reads persisted metadata
	// only, so it stays available mid-rebuild.
	ListSources() ([]string, error)

	Close() error
}
