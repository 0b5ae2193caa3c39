package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opennews/newsbox/internal/secrets"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the API token used to talk to the news server",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		if token == "" {
			fmt.Fprint(os.Stderr, "API token: ")
			reader := bufio.NewReader(os.Stdin)
			line, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("read token: %w", err)
			}
			token = strings.TrimSpace(line)
		}
		if token == "" {
			return errors.New("no token provided")
		}

		store, err := openSecrets()
		if err != nil {
			return err
		}
		if err := store.Save(secrets.TokenKey, token); err != nil {
			return err
		}

		fmt.Println("token saved")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored API token",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSecrets()
		if err != nil {
			return err
		}
		if err := store.Delete(secrets.TokenKey); err != nil {
			return err
		}

		fmt.Println("token removed")
		return nil
	},
}

func init() {
	loginCmd.Flags().String("token", "", "token value (prompted when omitted)")
	rootCmd.AddCommand(loginCmd, logoutCmd)
}
