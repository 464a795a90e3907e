package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koustreak/dbmeta/internal/codec"
	"github.com/koustreak/dbmeta/internal/config"
	"github.com/koustreak/dbmeta/internal/logger"
	"github.com/koustreak/dbmeta/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		dir           string
		addr          string
		passphraseEnv string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Browse a per-database output directory over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("dir") {
				dir = cfg.Output.Path
			}
			cfg.Output.PassphraseEnv = passphraseEnv

			if _, err := os.Stat(dir); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := logger.New(cfg.Logger())
			c := codec.New(cfg.Codec(os.Getenv))
			return server.New(os.DirFS(dir), c, log).ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Output directory written by collect")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&passphraseEnv, "passphrase-env", config.DefaultPassphraseEnv, "Environment variable holding the decryption passphrase")
	return cmd
}
