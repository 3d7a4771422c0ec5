package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sopqa/config"
	"sopqa/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
)

var rootCmd = &cobra.Command{
	Use:   "sopqa",
	Short: "Question answering over your own documents",
	Long: `sopqa indexes a directory of plain-text documents (.txt, .md, .docx),
embeds them with a configurable provider, and answers questions grounded
strictly in what the documents say.

Example usage:
  sopqa ingest                       # Build the index from the documents directory
  sopqa ask "How do I reset it?"     # Answer a question from the index
  sopqa serve                        # Run the HTTP API`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		// API keys commonly live in a local .env during development.
		_ = godotenv.Load()

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger.Init(cfg.Logging.Level, cfg.Logging.Pretty)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./sopqa.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
