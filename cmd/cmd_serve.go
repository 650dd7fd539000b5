package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"suapemap/config"
	"suapemap/server"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveOpts = struct {
	addr string
	file string
}{}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the extracted collection over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		file := serveOpts.file
		if !cmd.Flags().Changed("file") {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			file = cfg.Output()
		}

		srv := &http.Server{
			Addr:              serveOpts.addr,
			Handler:           server.New(file).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		log.Info().Str("addr", serveOpts.addr).Str("file", file).Msg("server is running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}
	serveCmd.Flags().StringVar(&serveOpts.addr, "addr", ":"+port, "Listen address")
	serveCmd.Flags().StringVar(&serveOpts.file, "file", config.DefaultOutputPath, "Collection file to serve")
	rootCmd.AddCommand(serveCmd)
}
