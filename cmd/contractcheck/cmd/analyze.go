package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	analyzeURL    string
	analyzeObject string
	analyzeFormat string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyze one contract",
	Long: `Analyze a contract for major risks, compliance issues and unfair terms.

The contract is read from a local file, a web page (--url) or an object in
the configured bucket (--object).

Examples:
  contractcheck analyze lease.pdf
  contractcheck analyze --url https://example.com/terms
  contractcheck analyze --object leases/2024/flat.docx --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeURL, "url", "", "Fetch the contract from a web page")
	analyzeCmd.Flags().StringVar(&analyzeObject, "object", "", "Download the contract from the storage bucket")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "text", "Output format: text or json")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()

	src := source{URL: analyzeURL, Object: analyzeObject}
	if len(args) == 1 {
		src.File = args[0]
	}

	path, cleanup, err := stage(ctx, cfg, src)
	if err != nil {
		return err
	}
	defer cleanup()

	analyzer, _, err := newAnalyzer(ctx, cfg)
	if err != nil {
		return err
	}

	result, err := analyzer.Analyze(ctx, path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if analyzeFormat == "json" {
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(output))
	} else if !result.Failed() {
		fmt.Fprintln(out, result.Text)
	}

	if result.Failed() {
		return failureError(result.Text)
	}
	return nil
}
