package main

import (
	"fmt"

	"github.com/matthewjhunter/courier/internal/feeds"
	"github.com/spf13/cobra"
)

// feedsCmd manages subscriptions for the direct RSS source. Miniflux
// deployments manage feeds in Miniflux itself.
func feedsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feeds",
		Short: "Manage RSS/Atom subscriptions for the rss source",
	}
	cmd.AddCommand(feedsListCmd())
	cmd.AddCommand(feedsAddCmd())
	cmd.AddCommand(feedsRemoveCmd())
	cmd.AddCommand(feedsImportCmd())
	return cmd
}

func feedsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List subscribed feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer engine.Close()

			list, err := engine.News().Feeds()
			if err != nil {
				return err
			}
			return formatter().OutputFeeds(list)
		},
	}
}

func feedsAddCmd() *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Subscribe to a feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer engine.Close()

			id, err := engine.News().AddFeed(args[0], title)
			if err != nil {
				return err
			}
			formatter().Status("Subscribed to %s (id %d)", args[0], id)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "display title")
	return cmd
}

func feedsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <url>",
		Aliases: []string{"rm"},
		Short:   "Unsubscribe from a feed",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer engine.Close()

			removed, err := engine.News().RemoveFeed(args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("not subscribed: %s", args[0])
			}
			formatter().Status("Unsubscribed from %s", args[0])
			return nil
		},
	}
}

func feedsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-opml <file>",
		Short: "Subscribe to every feed in an OPML export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer engine.Close()

			src := feeds.NewRSSSource(engine.News(), httpClient, logger)
			n, err := src.ImportOPML(args[0])
			if err != nil {
				return err
			}
			formatter().Status("Imported %d feeds from %s", n, args[0])
			return nil
		},
	}
}
