package port

import "sopqa/internal/domain"

// DocumentLoader turns raw files into plain-text documents. Only the
// output contract matters to the pipeline: a sequence of text bodies
// with source identifiers.
type DocumentLoader interface {
	// Files lists the loadable files under dir, relative to dir.
	Files(dir string) ([]string, error)

	// Read extracts the plain text of one file.
	Read(dir, rel string) (domain.Document, error)

	// Load lists and reads everything under dir. Unreadable or empty
	// files are skipped.
	Load(dir string) ([]domain.Document, error)
}
