package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
)

const defaultBaseURL = "http://localhost:8080"

var (
	baseURL   string
	tokenPath string
	asJSON    bool
)

var rootCmd = &cobra.Command{
	Use:   "vrstore",
	Short: "vrstore is the admin CLI for the VR app store catalog.",
	// main prints the error once; usage on every API error buries it
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "api", envOr("VRSTORE_API", defaultBaseURL), "API base URL")
	rootCmd.PersistentFlags().StringVar(&tokenPath, "token", defaultTokenPath(), "token file path")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print raw JSON instead of tables")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".vrstore-token.json"
	}
	return filepath.Join(home, ".vrstore", "token.json")
}
