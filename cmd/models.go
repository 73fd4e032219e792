package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"ragchat-router/internal/registry"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List configured model aliases",
	RunE: func(cmd *cobra.Command, args []string) error {
		aliases, err := registry.NewFromFile(cfgPath).Aliases()
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(aliases, "", "  ")
		if err != nil {
			return fmt.Errorf("format alias table: %w", err)
		}
		fmt.Println(string(data))
		return nil
	},
}
