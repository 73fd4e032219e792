package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.pdf>",
	Short: "Index a PDF document into the vector store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
			return fmt.Errorf("only PDF files are accepted, got %q", path)
		}

		deps, err := build(cfgPath)
		if err != nil {
			return err
		}

		chunks, err := deps.ingestor.IngestPDF(cmd.Context(), path)
		if err != nil {
			return err
		}

		color.New(color.FgGreen).Printf("stored %d chunks from %s in collection %q\n",
			chunks, path, deps.cfg.Retriever.Collection)
		return nil
	},
}
