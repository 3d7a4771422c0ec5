package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index state and contents",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open index store: %w", err)
	}
	defer st.Close()

	pipeline, err := newPipeline(GetConfig(), st, nil)
	if err != nil {
		return err
	}
	// A restore failure is already reflected in the status output.
	_ = pipeline.Restore()

	status := pipeline.Status()
	fmt.Printf("State:     %s\n", status.State)
	fmt.Printf("Documents: %d\n", status.Documents)
	fmt.Printf("Passages:  %d\n", status.Passages)
	if status.Stale {
		fmt.Println("Stale:     yes (documents changed since last ingest)")
	}
	if status.LastError != "" {
		fmt.Printf("Last error: %s\n", status.LastError)
	}

	sources, err := pipeline.ListSources()
	if err == nil && len(sources) > 0 {
		fmt.Printf("\nIndexed sources:\n")
		for _, src := range sources {
			fmt.Printf("  - %s\n", src)
		}
	}
	return nil
}
