// Package loader reads raw document files into plain text. Plain text and
// markdown are read as-is; DOCX archives have their body text extracted.
// PDF extraction is not supported and such files are skipped.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"sopqa/internal/domain"
	"sopqa/internal/logger"
)

type FSLoader struct {
	includes []string
	excludes []string
}

func NewFSLoader(includes, excludes []string) *FSLoader {
	if len(includes) == 0 {
		includes = []string{"**/*.txt", "**/*.md", "**/*.docx"}
	}
	return &FSLoader{
		includes: includes,
		excludes: excludes,
	}
}

// Files lists loadable files under dir, relative to dir, in walk order.
func (l *FSLoader) Files(dir string) ([]string, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if info.IsDir() {
			if rel != "." && l.shouldExclude(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if l.shouldInclude(rel) && !l.shouldExclude(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	return files, nil
}

// Read extracts the plain text of one file. The document ID is the
// slash-separated path relative to dir, so it stays stable across
// platforms and re-ingestion runs.
func (l *FSLoader) Read(dir, rel string) (domain.Document, error) {
	path := filepath.Join(dir, rel)
	ext := strings.ToLower(filepath.Ext(rel))

	var text string
	var err error
	switch ext {
	case ".txt", ".md":
		var data []byte
		data, err = os.ReadFile(path)
		text = string(data)
	case ".docx":
		text, err = extractDocx(path)
	default:
		return domain.Document{}, fmt.Errorf("%w: unsupported file type %q", domain.ErrInvalidInput, ext)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("failed to read %s: %w", rel, err)
	}

	return domain.Document{
		ID:   filepath.ToSlash(rel),
		Text: text,
		Type: strings.TrimPrefix(ext, "."),
	}, nil
}

// Load lists and reads everything under dir. Files that cannot be read
// or contain no text are skipped with a warning, matching the contract
// that only text bodies with source identifiers reach the pipeline.
func (l *FSLoader) Load(dir string) ([]domain.Document, error) {
	log := logger.Component("loader")

	files, err := l.Files(dir)
	if err != nil {
		return nil, err
	}

	var docs []domain.Document
	for _, rel := range files {
		doc, err := l.Read(dir, rel)
		if err != nil {
			log.Warn().Str("file", rel).Err(err).Msg("skipping unreadable file")
			continue
		}
		if strings.TrimSpace(doc.Text) == "" {
			log.Warn().Str("file", rel).Msg("skipping file with no extractable text")
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (l *FSLoader) shouldInclude(path string) bool {
	path = filepath.ToSlash(path)
	for _, pattern := range l.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (l *FSLoader) shouldExclude(path string) bool {
	path = filepath.ToSlash(path)
	for _, pattern := range l.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}
