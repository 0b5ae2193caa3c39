package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opennews/newsbox/internal/client/config"
	"github.com/opennews/newsbox/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "newsbox",
	Short:         "Newsbox keeps a local news cache in sync with the content server",
	Version:       version.Detailed(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", config.DefaultConfigPath, "config file path")
	flags.StringP("data-dir", "d", "", "cache root directory")
	flags.StringP("server", "s", "", "news server base URL")
	flags.String("http-addr", "", "control plane listen address")
	flags.Duration("sync-interval", 0, "automatic sync interval")
	flags.Bool("force-full-refresh", false, "always rebuild image directories from scratch")

	viper.SetEnvPrefix("NEWSBOX")
	viper.AutomaticEnv()
	must(viper.BindPFlag("config", flags.Lookup("config")))
	must(viper.BindPFlag("data_dir", flags.Lookup("data-dir")))
	must(viper.BindPFlag("server_url", flags.Lookup("server")))
	must(viper.BindPFlag("control_plane_addr", flags.Lookup("http-addr")))
	must(viper.BindPFlag("sync_interval", flags.Lookup("sync-interval")))
	must(viper.BindPFlag("force_full_refresh", flags.Lookup("force-full-refresh")))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// loadConfig reads the config file and overlays flag/env overrides. A missing
// config file is not an error: defaults apply.
func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")

	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("no config file, using defaults", "path", path)
		cfg = config.Default()
	} else if err != nil {
		return nil, err
	}

	if v := viper.GetString("data_dir"); v != "" {
		cfg.DataDir = v
	}
	if v := viper.GetString("server_url"); v != "" {
		cfg.ServerURL = v
	}
	if v := viper.GetString("control_plane_addr"); v != "" {
		cfg.ControlPlaneAddr = v
	}
	if v := viper.GetDuration("sync_interval"); v > 0 {
		cfg.SyncInterval = config.Duration(v)
	}
	if viper.GetBool("force_full_refresh") {
		cfg.ForceFullRefresh = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func formatInterval(d time.Duration) string {
	return fmt.Sprintf("every %s", d)
}
