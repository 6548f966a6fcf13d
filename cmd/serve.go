package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/termsheet-cli/internal/ingest"
	"github.com/sells-group/termsheet-cli/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the grid API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		extractor, err := newExtractor(cfg)
		if err != nil {
			return err
		}

		srv := server.New(ingest.NewRunner(extractor), newExporter(cfg), server.Options{
			CORSOrigins:      cfg.Server.CORSOrigins,
			SessionTTL:       time.Duration(cfg.Server.SessionTTLMinutes) * time.Minute,
			MaxUploadBytes:   int64(cfg.Server.MaxUploadMB) << 20,
			UploadsPerMinute: cfg.Server.UploadsPerMinute,
			Extensions:       cfg.Ingest.Extensions,
			ExportFileName:   filepath.Base(cfg.Export.Path),
		})

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		return srv.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
