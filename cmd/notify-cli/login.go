package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login <user-id>",
		Short: "Authenticate and print a session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			resp, err := client.Login(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Authenticated as %s\n", resp.UserID)
			fmt.Printf("Token: %s\n", resp.Token)
			fmt.Printf("Expires: %s\n", resp.ExpiresAt.Format("2006-01-02 15:04:05"))
			fmt.Println("\nExport it for the other commands:")
			fmt.Printf("  export NOTIFY_TOKEN=%s\n", resp.Token)
			return nil
		},
	}
}
