package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opennews/newsbox/internal/client"
	syncengine "github.com/opennews/newsbox/internal/client/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one manual sync pass and exit",
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

		// one-shot run: nothing watches the status feed, skip the settle hold
		manager := app.Manager()
		manager.Session().SettleHold = 0
		outcome, err := manager.RunOnce(cmd.Context(), syncengine.TriggerManual)
		if err != nil {
			return err
		}

		switch outcome {
		case syncengine.OutcomeUpdated:
			fmt.Println("update complete")
		case syncengine.OutcomeUpToDate:
			fmt.Println("already up to date")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
