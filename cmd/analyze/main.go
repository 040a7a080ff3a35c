// Command analyze runs the contract analysis pipeline on a local file without
// the HTTP service or a database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"contract-analyzer/internal/bootstrap"
	"contract-analyzer/internal/extract"
	"contract-analyzer/internal/llm"
	"contract-analyzer/internal/shared/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd(newAnalyzer).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// analyzerFactory builds the model client from configuration.
type analyzerFactory func(ctx context.Context, cfg config.Config) (llm.Analyzer, error)

func newAnalyzer(ctx context.Context, cfg config.Config) (llm.Analyzer, error) {
	client, err := bootstrap.NewLLM(ctx, cfg)
	if err != nil {
		return llm.Analyzer{}, err
	}
	return llm.Analyzer{Client: client}, nil
}

func rootCmd(factory analyzerFactory) *cobra.Command {
	var (
		mimeType string
		timeout  time.Duration
		provider string
	)

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyze a contract document and print key information, risks and a summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if provider != "" {
				cfg.LLMProvider = provider
			}
			if timeout <= 0 {
				timeout = time.Duration(cfg.AITimeoutSeconds) * time.Second
			}
			analyzer, err := factory(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), analyzer, args[0], mimeType, timeout)
		},
	}
	cmd.PersistentFlags().StringVar(&mimeType, "mime", "", "Override the detected MIME type")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Model call timeout (default AI_TIMEOUT_SECONDS)")
	cmd.Flags().StringVar(&provider, "provider", "", "Model provider: gemini, openai or placeholder")

	cmd.AddCommand(&cobra.Command{
		Use:   "extract <file>",
		Short: "Print the text extracted from a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := extractFile(cmd.Context(), args[0], mimeType)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Text)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "prompt <file>",
		Short: "Print the prompt that would be sent to the model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := extractFile(cmd.Context(), args[0], mimeType)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), llm.BuildPrompt(res.Text))
			return err
		},
	})

	return cmd
}

func runAnalyze(ctx context.Context, out io.Writer, analyzer llm.Analyzer, path, mimeType string, timeout time.Duration) error {
	res, err := extractFile(ctx, path, mimeType)
	if err != nil {
		return err
	}
	if res.Unsupported {
		fmt.Fprintf(os.Stderr, "warning: %s is not a supported type; sending placeholder text\n", path)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	parsed := llm.ParseAnalysis(analyzer.Analyze(ctx, res.Text, llm.AnalysisInstruction))

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"key_information": parsed.KeyInformation,
		"risk_assessment": parsed.RiskAssessment,
		"summary":         parsed.Summary,
	})
}

func extractFile(ctx context.Context, path, mimeType string) (extract.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return extract.Result{}, err
	}
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}
	return extract.Extract(ctx, data, mimeType)
}
