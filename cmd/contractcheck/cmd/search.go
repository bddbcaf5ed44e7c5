package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfenderov/contractcheck/internal/vectorindex"
)

var (
	searchLimit  int
	searchFormat string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the persisted index",
	Long: `Search the chunks of the most recently indexed contract.

Examples:
  # Basic search
  contractcheck search "termination"

  # Limit results
  contractcheck search "late payment penalty" --limit 3

  # JSON output for scripting
  contractcheck search "liability" --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntVar(&searchLimit, "limit", 5, "Maximum number of results")
	searchCmd.Flags().StringVar(&searchFormat, "format", "text", "Output format: text or json")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	query := args[0]
	cfg := GetConfig()

	manager, err := newManager(ctx, cfg)
	if err != nil {
		return err
	}

	index, err := manager.Open(ctx)
	if errors.Is(err, vectorindex.ErrNotFound) {
		return fmt.Errorf("no index at %s: run analyze or index first", cfg.Index.Path)
	}
	if err != nil {
		return err
	}

	chunks, err := index.Search(ctx, query, searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(chunks) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}

	if searchFormat == "json" {
		output, err := json.MarshalIndent(chunks, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(output))
		return nil
	}

	fmt.Fprintf(out, "Found %d results:\n\n", len(chunks))
	for i, c := range chunks {
		fmt.Fprintf(out, "─── Result %d ───\n", i+1)
		fmt.Fprintf(out, "Position: %d\n", c.Position)
		fmt.Fprintf(out, "Score:    %.4f\n", c.Score)
		fmt.Fprintf(out, "Text:\n%s\n\n", c.Text)
	}
	return nil
}
