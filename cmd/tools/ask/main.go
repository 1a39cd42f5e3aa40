// cmd/tools/ask/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"brokerage-insights/internal/app"
	"brokerage-insights/internal/common/config"
	apperrors "brokerage-insights/internal/common/errors"
	"brokerage-insights/internal/common/logger"
	"brokerage-insights/internal/pipeline/orchestrator"
)

var (
	configPath string
	callerID   string
	utterance  string
	asJSON     bool
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one business question against the live data store",
	Example: `  ask --caller-id "+1 555 010 2000" "what is my total income this year?"
  ask "This is Sarah Lee, how many deals have I closed?"`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runAsk,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "Config file (default: configs/config.yaml lookup)")
	rootCmd.Flags().StringVar(&callerID, "caller-id", "", "Caller phone number")
	rootCmd.Flags().StringVar(&utterance, "utterance", "", "Separate self-introduction, e.g. \"my agent id is 42\"")
	rootCmd.Flags().BoolVar(&asJSON, "json", false, "Print the full answer as JSON")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 90*time.Second, "Overall deadline")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.NewStructured("warn", "console")

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	conns, err := app.Connect(ctx, cfg, app.Once)
	if err != nil {
		return err
	}
	defer conns.Close()

	pipeline, err := app.Assemble(cfg, conns, nil, log)
	if err != nil {
		return err
	}

	answer, err := pipeline.Answer(ctx, orchestrator.Request{
		Question:  strings.Join(args, " "),
		CallerID:  callerID,
		Utterance: utterance,
	})
	out := cmd.OutOrStdout()
	if err != nil {
		message := apperrors.UserMessage(err, cfg.Identity.AssistantName)
		if asJSON {
			stdErr, _ := apperrors.AsStandardError(err)
			return printJSON(out, map[string]interface{}{
				"answered": false,
				"message":  message,
				"error":    stdErr,
			})
		}
		fmt.Fprintln(out, message)
		return nil
	}

	if asJSON {
		return printJSON(out, answer)
	}
	fmt.Fprintln(out, answer.Narration)
	return nil
}

func printJSON(w interface{ Write([]byte) (int, error) }, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
