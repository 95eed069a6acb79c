package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/socialmesh/notifyhub-go/pkg/identity"
)

func newReadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "read <event-id>",
		Short: "Mark a notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return fmt.Errorf("a session token is required (run login first)")
			}

			provider := identity.NewTokenProvider()
			if err := provider.SetToken(token); err != nil {
				return err
			}
			current, _ := provider.Current()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if err := client.AcknowledgeRead(ctx, current.UserID, args[0]); err != nil {
				return err
			}
			fmt.Printf("Marked %s as read\n", args[0])
			return nil
		},
	}
}
