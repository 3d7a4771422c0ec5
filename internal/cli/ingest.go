package cli

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"sopqa/config"
	"sopqa/internal/domain"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Build the index from the documents directory",
	Long: `Read every supported document (.txt, .md, .docx), split it into
overlapping passages, embed them and store the index in .sopqa/index.db.
Re-running ingest replaces the previous index.

Examples:
  sopqa ingest                 # Ingest the configured documents directory
  sopqa ingest ./handbook      # Ingest a specific directory`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	dir := documentsDir(cfg)
	if len(args) > 0 {
		dir = args[0]
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("documents path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("documents path is not a directory: %s", dir)
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open index store: %w", err)
	}
	defer st.Close()

	pipeline, err := newPipeline(cfg, st, nil)
	if err != nil {
		return err
	}

	ld := newLoader(cfg)
	files, err := ld.Files(dir)
	if err != nil {
		return fmt.Errorf("failed to scan documents: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no supported documents found in %s", dir)
	}

	fmt.Printf("Scanning %s...\n", dir)
	bar := progressbar.NewOptions(len(files),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Reading[reset]"),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	var docs []domain.Document
	var skipped []string
	for _, rel := range files {
		doc, err := ld.Read(dir, rel)
		if err != nil || doc.Text == "" {
			skipped = append(skipped, rel)
			bar.Add(1)
			continue
		}
		docs = append(docs, doc)
		bar.Add(1)
	}
	if len(docs) == 0 {
		return fmt.Errorf("no readable documents found in %s", dir)
	}

	fmt.Printf("Embedding %d document(s)...\n", len(docs))
	result, err := pipeline.Ingest(cmd.Context(), docs)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Documents indexed: %d\n", result.DocumentsProcessed)
	fmt.Printf("  Passages created:  %d\n", result.PassagesCreated)
	if len(skipped) > 0 {
		fmt.Printf("\nSkipped (unreadable or empty):\n")
		for _, rel := range skipped {
			fmt.Printf("  - %s\n", rel)
		}
	}
	fmt.Printf("\nIndex stored at: %s\n", config.IndexDBPath(GetRootDir()))
	return nil
}
