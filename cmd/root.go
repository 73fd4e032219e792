package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "ragchat-router",
	Short: "A chat routing service with retrieval-augmented generation",
	Long: `ragchat-router routes chat requests to configured LLM providers,
optionally grounding prompts with context retrieved from a vector store.

Commands:
  serve    Start the HTTP chat service
  models   List configured model aliases
  chat     Send one chat turn from the terminal
  ingest   Index a PDF document into the vector store`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to the YAML configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(ingestCmd)
}

// Execute runs the CLI with the provided context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
