package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/opennews/newsbox/internal/client"
	"github.com/opennews/newsbox/internal/secrets"
	"github.com/opennews/newsbox/internal/version"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the sync daemon with its local control plane",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := openSecrets()
		if err != nil {
			return err
		}

		app, err := client.New(cfg, store)
		if err != nil {
			return err
		}

		slog.Info("newsbox daemon",
			"version", version.Short(),
			"data", cfg.DataDir,
			"server", cfg.ServerURL,
			"http", cfg.ControlPlaneAddr,
			"sync", formatInterval(cfg.SyncInterval.Std()),
		)

		return app.Start(cmd.Context())
	},
}

func openSecrets() (secrets.Store, error) {
	fallback, err := client.ResolveSecretsPath()
	if err != nil {
		return nil, err
	}
	return secrets.Open(fallback), nil
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
