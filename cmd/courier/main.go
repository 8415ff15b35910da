package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/matthewjhunter/courier/internal/logging"
	"github.com/matthewjhunter/courier/internal/output"
	"github.com/matthewjhunter/courier/internal/storage"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "./config/config.yaml"

var (
	configPath   string
	cfg          *storage.Config
	outputFormat string
	actingUser   string
	logger       *log.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "courier",
		Short:         "News feed relay with per-user bookmarks and game wishlists",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path, YAML or TOML (default: "+defaultConfigPath+")")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "human", "output format: json, text, human")
	rootCmd.PersistentFlags().StringVarP(&actingUser, "user", "u", "", "user ID to act as (default: the configured bot owner)")

	rootCmd.AddCommand(daemonCmd())
	rootCmd.AddCommand(pollCmd())
	rootCmd.AddCommand(bookmarksCmd())
	rootCmd.AddCommand(wishlistCmd())
	rootCmd.AddCommand(feedsCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(initConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() error {
	if configPath == "" {
		configPath = defaultConfigPath
	}
	var err error
	cfg, err = storage.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger = logging.New(cfg.Log.Level, os.Stderr)
	return nil
}

func formatter() *output.Formatter {
	return output.NewFormatter(output.Format(outputFormat))
}

// currentUser resolves the user a CLI command acts for.
func currentUser() (string, error) {
	if actingUser != "" {
		return actingUser, nil
	}
	if cfg.Bot.OwnerID != "" {
		return cfg.Bot.OwnerID, nil
	}
	return "", fmt.Errorf("no user: pass --user or set bot.owner_id")
}

func initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Create a default config file",
		// Skip loading a config that does not exist yet.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = defaultConfigPath
			}

			dir := filepath.Dir(configPath)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}
			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("config file already exists: %s", configPath)
			}

			if err := storage.DefaultConfig().Write(configPath); err != nil {
				return err
			}
			fmt.Printf("Created default config at %s\n", configPath)
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		admin bool
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue an API bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := issueToken(args[0], admin, ttl)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().BoolVar(&admin, "admin", false, "allow owner-only operations")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime, 0 for no expiry")
	return cmd
}
