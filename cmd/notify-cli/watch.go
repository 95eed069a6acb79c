package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/socialmesh/notifyhub-go/internal/engine"
	"github.com/socialmesh/notifyhub-go/pkg/identity"
)

func newWatchCommand() *cobra.Command {
	var refresh time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the live grouped notification view",
		Long: `watch runs the full engine against the hub: it binds the session
token's identity, loads the baseline, opens the push stream, and re-renders
the grouped view on every change. Requires --token or NOTIFY_TOKEN.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return fmt.Errorf("a session token is required (run login first)")
			}

			provider := identity.NewTokenProvider()
			if err := provider.SetToken(token); err != nil {
				return err
			}

			eng := engine.New(provider, client, nil, engine.Config{
				RefreshInterval: refresh,
			})
			if err := eng.Start(cmd.Context()); err != nil {
				return err
			}
			defer eng.Close()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

			fmt.Println("Watching notifications (Ctrl+C to stop)...")
			render(eng)
			for {
				select {
				case <-stop:
					return nil
				case <-eng.Watch():
					render(eng)
				}
			}
		},
	}

	cmd.Flags().DurationVar(&refresh, "refresh", 30*time.Second, "unread count reconciliation interval (0 disables)")

	return cmd
}

func render(eng *engine.Controller) {
	groups := eng.Groups()
	fmt.Printf("\n== %d unread ==\n", eng.UnreadCount())
	if len(groups) == 0 {
		fmt.Println("  (no notifications)")
		return
	}
	for _, g := range groups {
		marker := " "
		if g.HasUnread {
			marker = "*"
		}
		fmt.Printf("%s %s  [%d event(s), latest %s]\n",
			marker, g.Text, g.Count, g.Latest.CreatedAt.Format("15:04:05"))
	}
}
