package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/mfenderov/contractcheck/internal/web"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the upload form",
	Long: `Start the web front-end: a single page where a contract is uploaded and the
analysis is shown.

Routes:
  GET  /             upload form
  POST /analyze      form upload, HTML result
  POST /api/analyze  multipart upload, JSON result
  GET  /health

Example:
  contractcheck serve --addr :8501`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	analyzer, _, err := newAnalyzer(ctx, cfg)
	if err != nil {
		return err
	}

	server, err := web.NewServer(analyzer, web.Config{
		WorkDir:        cfg.Server.WorkDir,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to create web server: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Listening on %s\n", addr)

	return server.Run(ctx, addr)
}
