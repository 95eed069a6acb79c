package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/socialmesh/notifyhub-go/pkg/notification"
	"github.com/socialmesh/notifyhub-go/pkg/transport"
)

func newPublishCommand() *cobra.Command {
	var (
		kind    string
		sender  string
		handle  string
		related string
	)

	cmd := &cobra.Command{
		Use:   "publish <user-id> <content>",
		Short: "Publish a test notification to a user's topic",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			evt := notification.Event{
				Kind:         notification.Kind(kind),
				Content:      args[1],
				SenderName:   sender,
				SenderHandle: handle,
				RelatedID:    related,
			}

			resp, err := client.Publish(ctx, transport.Topic(args[0]), evt)
			if err != nil {
				return err
			}

			fmt.Printf("Published %s to %s\n", resp.ID, resp.Topic)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", string(notification.KindLike), "event kind (LIKE, COMMENT, FOLLOW, MESSAGE)")
	cmd.Flags().StringVar(&sender, "sender", "Test User", "sender display name")
	cmd.Flags().StringVar(&handle, "handle", "testuser", "sender handle")
	cmd.Flags().StringVar(&related, "related", "", "related entity id")

	return cmd
}
