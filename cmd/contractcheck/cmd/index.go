package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfenderov/contractcheck/internal/extract"
	"github.com/mfenderov/contractcheck/internal/vectorindex"
)

var (
	indexURL    string
	indexObject string
	indexForce  bool
)

var indexCmd = &cobra.Command{
	Use:   "index [file]",
	Short: "Build the persisted index for a contract",
	Long: `Extract and chunk a contract and build the persisted index, without asking
the model. An index built from the same text is reused unless --force is set.

Examples:
  contractcheck index lease.pdf
  contractcheck index lease.pdf --force
  contractcheck index --url https://example.com/terms`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().StringVar(&indexURL, "url", "", "Fetch the contract from a web page")
	indexCmd.Flags().StringVar(&indexObject, "object", "", "Download the contract from the storage bucket")
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "Rebuild even when the persisted index matches")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()

	src := source{URL: indexURL, Object: indexObject}
	if len(args) == 1 {
		src.File = args[0]
	}

	path, cleanup, err := stage(ctx, cfg, src)
	if err != nil {
		return err
	}
	defer cleanup()

	text, err := newExtractor(cfg).Extract(ctx, path)
	if e, ok := extract.AsError(err); ok {
		return failureError(e.Error())
	}
	if err != nil {
		return err
	}

	splitter, err := newSplitter(cfg)
	if err != nil {
		return err
	}
	chunks := splitter.Chunks(text)

	manager, err := newManager(ctx, cfg)
	if err != nil {
		return err
	}

	var index *vectorindex.Index
	if indexForce {
		index, err = manager.Rebuild(ctx, chunks)
	} else {
		index, err = manager.BuildOrLoad(ctx, chunks)
	}
	if err != nil {
		return err
	}

	header := index.Header()
	out := cmd.OutOrStdout()
	if index.Origin() == vectorindex.OriginLoaded {
		fmt.Fprintf(out, "Index is up to date (%d chunks, model %s)\n", header.Count, header.Model)
		return nil
	}
	fmt.Fprintf(out, "Index built: %d chunks, %d dimensions, model %s (reason: %s)\n",
		header.Count, header.Dimension, header.Model, index.Reason())
	return nil
}
