package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"labeladmin/src/auth"
	cfg "labeladmin/src/configuration"
	"labeladmin/src/imaging"
	"labeladmin/src/logging"
	"labeladmin/src/server"
)

var (
	config *cfg.Properties
	logger *zap.Logger

	printPayload bool
)

var rootCmd = &cobra.Command{
	Use:          "labeladmin",
	Short:        "Admin dashboard for the label's content, store and inbox",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if config, err = cfg.ReadProperties(); err != nil {
			return err
		}
		logger, err = logging.New(config.LogLevel)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: serve,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard pages and the JSON API",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print a bcrypt hash for AUTH_PASSWORD_HASH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashPassword(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize [file]",
	Short: "Normalize an image file the way uploads are stored",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return err
		}

		normalizer := imaging.New(
			imaging.WithMaxSourceBytes(config.Image.MaxSourceBytes),
			imaging.WithMaxEdge(config.Image.MaxEdge),
			imaging.WithMaxPayloadChars(config.Image.MaxPayloadChars),
		)
		img, err := normalizer.NormalizeReader(f, info.Size())
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		if printPayload {
			fmt.Fprintln(cmd.OutOrStdout(), img.Payload)
			return nil
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]int{
			"width":        img.Width,
			"height":       img.Height,
			"quality":      img.Quality,
			"payloadChars": len(img.Payload),
		})
	},
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.RunServer(ctx, config, logger)
}

func init() {
	normalizeCmd.Flags().BoolVar(&printPayload, "payload", false, "print the data URL instead of a summary")
	rootCmd.AddCommand(serveCmd, hashPasswordCmd, normalizeCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
