package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/socialmesh/notifyhub-go/internal/transport"
)

var (
	// Global flags
	serverURL string
	token     string
	timeout   time.Duration

	// Global client instance
	client *transport.Client
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "notify-cli",
		Short: "Notification hub command line interface",
		Long: `notify-cli drives a notification hub: login, publish test events,
watch the live grouped notification view, and mark notifications read.`,
		PersistentPreRunE: initializeClient,
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("NOTIFY_SERVER", "http://localhost:8082"), "notification hub URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("NOTIFY_TOKEN"), "session token (skip login)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")

	rootCmd.AddCommand(newLoginCommand())
	rootCmd.AddCommand(newPublishCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newReadCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func initializeClient(cmd *cobra.Command, args []string) error {
	var err error
	client, err = transport.NewClient(transport.Config{
		ServerURL: serverURL,
		Timeout:   timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
