package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/matthewjhunter/courier/internal/storage"
	"github.com/spf13/cobra"
)

func wishlistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "wishlist",
		Aliases: []string{"wl"},
		Short:   "Manage game wishlists",
	}
	cmd.AddCommand(wishlistShowCmd())
	cmd.AddCommand(wishlistAddCmd())
	cmd.AddCommand(wishlistRemoveCmd())
	cmd.AddCommand(wishlistClearCmd())
	cmd.AddCommand(wishlistVisibilityCmd())
	cmd.AddCommand(wishlistSetDateCmd())
	cmd.AddCommand(wishlistCalendarCmd())
	cmd.AddCommand(wishlistSearchCmd())
	cmd.AddCommand(wishlistUpcomingCmd())
	cmd.AddCommand(wishlistRefreshCmd())
	return cmd
}

func parseGameID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid game id: %s", s)
	}
	return id, nil
}

func wishlistShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [owner-id]",
		Short: "Show a wishlist, your own by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			viewer, err := currentUser()
			if err != nil {
				return err
			}
			owner := viewer
			if len(args) == 1 {
				owner = args[0]
			}
			engine, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer engine.Close()

			items, err := engine.ViewWishlist(viewer, owner)
			if err != nil {
				return err
			}
			return formatter().OutputWishlist(owner, items)
		},
	}
}

func wishlistAddCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "add [game-id]",
		Short: "Add a game by IGDB id, or by --name when the search is unambiguous",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (name == "") {
				return fmt.Errorf("pass either a game id or --name")
			}
			user, err := currentUser()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			engine, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer engine.Close()

			var gameID int64
			if len(args) == 1 {
				if gameID, err = parseGameID(args[0]); err != nil {
					return err
				}
			} else {
				games, err := engine.SearchGames(ctx, name, 10)
				if err != nil {
					return err
				}
				pick := pickGame(games, name)
				if pick == nil {
					if len(games) > 0 {
						_ = formatter().OutputGames(games)
					}
					return fmt.Errorf("%d games match %q, add one by id", len(games), name)
				}
				gameID = pick.ID
			}

			game, added, err := engine.AddGameByID(ctx, user, gameID)
			if err != nil {
				return err
			}
			if added {
				formatter().Status("Added %s (%d)", game.Name, game.ID)
			} else {
				formatter().Status("%s is already on your wishlist", game.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "search for the game by name")
	return cmd
}

// pickGame returns the single search hit, or the one whose name matches
// exactly.
func pickGame(games []storage.Game, name string) *storage.Game {
	if len(games) == 1 {
		return &games[0]
	}
	var hit *storage.Game
	for i := range games {
		if strings.EqualFold(games[i].Name, name) {
			if hit != nil {
				return nil
			}
			hit = &games[i]
		}
	}
	return hit
}

func wishlistRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <game-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a game from your wishlist",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := currentUser()
			if err != nil {
				return err
			}
			id, err := parseGameID(args[0])
			if err != nil {
				return err
			}
			engine, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer engine.Close()

			if !engine.RemoveFromWishlist(user, id) {
				return fmt.Errorf("failed to remove game %d", id)
			}
			formatter().Status("Removed %d", id)
			return nil
		},
	}
}

func wishlistClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every game from your wishlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := currentUser()
			if err != nil {
				return err
			}
			engine, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer engine.Close()

			if !engine.ClearWishlist(user) {
				return fmt.Errorf("failed to clear wishlist")
			}
			formatter().Status("Wishlist cleared")
			return nil
		},
	}
}

func wishlistVisibilityCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "visibility [public|private]",
		Short:     "Show or set who can see your wishlist",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"public", "private"},
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := currentUser()
			if err != nil {
				return err
			}
			engine, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer engine.Close()

			if len(args) == 1 {
				if !engine.SetVisibility(user, args[0] == "public") {
					return fmt.Errorf("failed to set visibility")
				}
			}
			state := "private"
			if engine.Visibility(user) {
				state = "public"
			}
			formatter().Status("Wishlist is %s", state)
			return nil
		},
	}
}

func wishlistSetDateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-date <game> <date>",
		Short: "Override a game's release date",
		Long: `Sets the release date of a game on your wishlist. <game> is an IGDB id,
a slug, or part of the name. <date> is YYYY-MM-DD, DD/MM/YYYY, RFC 3339,
or unix seconds.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := currentUser()
			if err != nil {
				return err
			}
			engine, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer engine.Close()

			up, err := engine.UpdateReleaseDate(user, args[0], args[1])
			if err != nil {
				return err
			}
			return formatter().OutputReleaseUpdate(up)
		},
	}
}

func wishlistCalendarCmd() *cobra.Command {
	var (
		year, month int
		tz          string
	)
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show your wishlist releases for a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := currentUser()
			if err != nil {
				return err
			}
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("invalid timezone: %w", err)
			}
			now := time.Now().In(loc)
			if year == 0 {
				year = now.Year()
			}
			if month == 0 {
				month = int(now.Month())
			}
			engine, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer engine.Close()

			cal, err := engine.ReleaseCalendar(user, year, month, loc)
			if err != nil {
				return err
			}
			return formatter().OutputCalendar(cal)
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "year (default: current)")
	cmd.Flags().IntVar(&month, "month", 0, "month 1-12 (default: current)")
	cmd.Flags().StringVar(&tz, "tz", "UTC", "timezone for day boundaries")
	return cmd
}

func wishlistSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <name>",
		Short: "Search IGDB for games",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer engine.Close()

			games, err := engine.SearchGames(ctx, strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			return formatter().OutputGames(games)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum results")
	return cmd
}

func wishlistUpcomingCmd() *cobra.Command {
	var (
		platform int64
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List upcoming releases on IGDB, soonest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer engine.Close()

			games, err := engine.UpcomingGames(ctx, platform, limit)
			if err != nil {
				return err
			}
			return formatter().OutputGames(games)
		},
	}
	cmd.Flags().Int64Var(&platform, "platform", 0, "IGDB platform id to filter by")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum results")
	return cmd
}

func wishlistRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Re-fetch release dates for every wishlisted game (bot owner only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := currentUser()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			engine, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer engine.Close()

			sum, err := engine.RefreshWishlist(ctx, user)
			if err != nil {
				return err
			}
			return formatter().OutputRefreshSummary(sum)
		},
	}
}
