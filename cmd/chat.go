package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ragchat-router/internal/models"
	"ragchat-router/internal/runlog"
)

const runsDir = "runs"

var (
	chatModel       string
	chatUser        string
	chatSystem      string
	chatTemperature float64
	chatMaxTokens   int
	chatNoRAG       bool
	chatJSONMode    bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Send one chat turn and print the response envelope",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := build(cfgPath)
		if err != nil {
			return err
		}

		var messages []models.Message
		if chatSystem != "" {
			messages = append(messages, models.Message{Role: models.RoleSystem, Content: chatSystem})
		}
		messages = append(messages, models.Message{Role: models.RoleUser, Content: chatUser})

		params := models.DefaultParams()
		params.Temperature = chatTemperature
		params.MaxTokens = chatMaxTokens
		params.JSONMode = chatJSONMode

		writer, err := newRunWriter(deps.registryAliases())
		if err != nil {
			return err
		}

		spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		spin.Suffix = " waiting for " + chatModel
		spin.Start()

		result := deps.orchestrator.Chat(cmd.Context(), models.ChatRequest{
			Messages:   messages,
			ModelAlias: chatModel,
			Params:     params,
			UseRAG:     !chatNoRAG,
		})

		spin.Stop()

		if writer != nil {
			recordInteraction(writer, messages, params, result)
		}

		return printResult(result)
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatModel, "model", "", "alias of the model to use (required)")
	chatCmd.Flags().StringVar(&chatUser, "user", "", "user prompt (required)")
	chatCmd.Flags().StringVar(&chatSystem, "system", "", "optional system prompt")
	chatCmd.Flags().Float64Var(&chatTemperature, "temperature", 0.2, "sampling temperature")
	chatCmd.Flags().IntVar(&chatMaxTokens, "max-tokens", 512, "maximum tokens to generate")
	chatCmd.Flags().BoolVar(&chatNoRAG, "no-rag", false, "disable retrieval augmentation")
	chatCmd.Flags().BoolVar(&chatJSONMode, "json", false, "request JSON-formatted output")
	_ = chatCmd.MarkFlagRequired("model")
	_ = chatCmd.MarkFlagRequired("user")
}

// newRunWriter prepares the per-run directory and manifest. Run logging is
// best effort: a failure is reported but never blocks the chat itself.
func newRunWriter(aliases []string) (*runlog.Writer, error) {
	now := time.Now()
	runID := runlog.NewRunID(now)

	writer, err := runlog.NewWriter(runsDir, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: run log disabled: %v\n", err)
		return nil, nil
	}

	manifest := runlog.Manifest{
		RunID:         runID,
		Service:       "ragchat-router",
		StartedAt:     now.UTC().Format(time.RFC3339),
		AliasesLoaded: aliases,
	}
	if err := writer.SaveManifest(manifest); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	return writer, nil
}

func recordInteraction(writer *runlog.Writer, messages []models.Message, params models.ChatParams, result models.ChatResult) {
	status := "ok"
	if !result.OK() {
		status = "error"
	}

	rec := runlog.Interaction{
		TS:        time.Now().UTC().Format(time.RFC3339),
		RunID:     writer.RunID(),
		RequestID: result.RequestID,
		Provider:  result.Provider,
		Model:     result.Model,
		Params: map[string]any{
			"temperature": params.Temperature,
			"top_p":       params.TopP,
			"max_tokens":  params.MaxTokens,
			"json_mode":   params.JSONMode,
		},
		Usage:         result.Usage,
		LatencyMS:     result.LatencyMS,
		Status:        status,
		CostEstimated: result.CostEstimated,
	}

	if runlog.MessageLoggingEnabled() {
		rec.Messages = messages
		rec.OutputText = result.OutputText
	}

	if err := writer.AppendInteraction(rec); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
}

func printResult(result models.ChatResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("format response: %w", err)
	}

	if result.OK() {
		color.New(color.FgGreen, color.Bold).Fprintln(os.Stderr, "ok")
	} else {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "error: %s\n", result.Error.Code)
	}
	fmt.Println(string(data))
	return nil
}

// registryAliases lists the configured alias names for the run manifest.
func (c *components) registryAliases() []string {
	table, err := c.registry.Aliases()
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(table))
	for alias := range table {
		names = append(names, alias)
	}
	sort.Strings(names)
	return names
}
