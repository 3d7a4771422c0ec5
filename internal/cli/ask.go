package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the indexed documents",
	Long: `Answer a question using only what the indexed documents say.
Run 'sopqa ingest' first to build the index.

Examples:
  sopqa ask "How often is the first aid kit restocked?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open index store: %w", err)
	}
	defer st.Close()

	pipeline, err := newPipeline(GetConfig(), st, nil)
	if err != nil {
		return err
	}
	if err := pipeline.Restore(); err != nil {
		return fmt.Errorf("failed to load index: %w", err)
	}

	answer, err := pipeline.Ask(cmd.Context(), question)
	if err != nil {
		return err
	}

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()

	fmt.Printf("%s %s\n\n", boldCyan("Q:"), question)
	fmt.Printf("%s %s\n", boldGreen("A:"), answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Printf("\nSources:\n")
		for _, src := range answer.Sources {
			fmt.Printf("  - %s\n", src)
		}
	}
	return nil
}
