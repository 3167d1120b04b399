package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/tokentally/internal/domain"
	"github.com/kailas-cloud/tokentally/internal/domain/usage"
	logpkg "github.com/kailas-cloud/tokentally/internal/logger"
)

var systemPrompt string

var callCmd = &cobra.Command{
	Use:   "call [prompt]",
	Short: "Send one prompt, print the reply and its token usage",
	Long: `Sends a single prompt to the configured provider and prints the reply on stdout.
The usage line and the running totals go to stderr. Without arguments the prompt is read from stdin.`,
	Args: cobra.ArbitraryArgs,
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVar(&systemPrompt, "system", "", "optional system message sent before the prompt")
}

func runCall(cmd *cobra.Command, args []string) error {
	prompt, err := readPrompt(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger("cli", levelFor(cfg))
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	msgs := buildMessages(systemPrompt, prompt)
	reply, err := a.tracker.CallMessages(cmd.Context(), msgs)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), reply)
	writeTotals(cmd.ErrOrStderr(), a.tracker.Totals(), a.tracker.Pricing().Currency)
	return nil
}

// writeTotals prints the running totals after the reply, on the diagnostic stream.
func writeTotals(w io.Writer, s usage.Snapshot, currency string) {
	fmt.Fprintf(w, "totals: calls=%d, cost=%.6f %s, cache_hit=%d, cache_miss=%d, completion=%d, total=%d\n",
		s.Calls, s.Cost, currency, s.PromptCacheHitTokens, s.PromptCacheMissTokens, s.CompletionTokens, s.TotalTokens)
}

func readPrompt(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read prompt from stdin: %w", err)
	}
	prompt := strings.TrimRight(string(data), "\r\n")
	if prompt == "" {
		return "", errors.New("prompt is required as an argument or on stdin")
	}
	return prompt, nil
}

// buildMessages keeps the single-prompt shape unless a system message is given.
func buildMessages(system, prompt string) []domain.Message {
	msgs := domain.Prompt(prompt)
	if system == "" {
		return msgs
	}
	return append([]domain.Message{{Role: domain.RoleSystem, Content: system}}, msgs...)
}
