package loader

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// docx body structure, word/document.xml.
type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Text []docxText `xml:"t"`
}

type docxText struct {
	Content string `xml:",chardata"`
}

// extractDocx pulls the paragraph text out of a DOCX archive.
func extractDocx(path string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("not a valid docx archive: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", err
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}

		return parseDocxXML(content)
	}
	return "", fmt.Errorf("archive has no word/document.xml")
}

func parseDocxXML(content []byte) (string, error) {
	var doc docxDocument
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("unreadable document xml: %w", err)
	}

	var sb strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			sb.WriteString("\n")
		}
		for _, run := range para.Runs {
			for _, text := range run.Text {
				sb.WriteString(text.Content)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
