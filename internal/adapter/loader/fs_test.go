package loader

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func writeDocx(t *testing.T, dir, rel, documentXML string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestFilesRespectsGlobs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha")
	writeFile(t, dir, "nested/b.md", "beta")
	writeFile(t, dir, "c.pdf", "%PDF-1.4")
	writeFile(t, dir, ".hidden/d.txt", "hidden")

	l := NewFSLoader([]string{"**/*.txt", "**/*.md"}, []string{"**/.*/**"})
	files, err := l.Files(dir)
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]bool{"a.txt": true, filepath.Join("nested", "b.md"): true}
	if len(files) != len(want) {
		t.Fatalf("got %v, want keys %v", files, want)
	}
	for _, f := range files {
		if !want[f] {
			t.Errorf("unexpected file %q", f)
		}
	}
}

func TestLoadSkipsEmptyAndUnsupported(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.txt", "Procedure: do the thing.")
	writeFile(t, dir, "empty.txt", "   \n")

	l := NewFSLoader(nil, nil)
	docs, err := l.Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].ID != "good.txt" || docs[0].Type != "txt" {
		t.Errorf("unexpected document: %+v", docs[0])
	}
}

func TestReadDocx(t *testing.T) {
	dir := t.TempDir()
	writeDocx(t, dir, "sop.docx", `<?xml version="1.0"?>
<document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <body>
    <p><r><t>First paragraph of the procedure.</t></r></p>
    <p><r><t>Second </t></r><r><t>paragraph.</t></r></p>
  </body>
</document>`)

	l := NewFSLoader(nil, nil)
	doc, err := l.Read(dir, "sop.docx")
	if err != nil {
		t.Fatal(err)
	}

	want := "First paragraph of the procedure.\nSecond paragraph."
	if doc.Text != want {
		t.Errorf("got %q, want %q", doc.Text, want)
	}
	if doc.Type != "docx" {
		t.Errorf("unexpected type %q", doc.Type)
	}
}

func TestReadDocxRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.docx", "this is not a zip archive")

	l := NewFSLoader(nil, nil)
	if _, err := l.Read(dir, "broken.docx"); err == nil {
		t.Fatal("expected an error for a non-zip docx")
	}
}
