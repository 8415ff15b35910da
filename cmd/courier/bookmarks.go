package main

import (
	"fmt"

	"github.com/matthewjhunter/courier/internal/storage"
	"github.com/spf13/cobra"
)

func bookmarksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bookmarks",
		Aliases: []string{"bm"},
		Short:   "Manage the acting user's bookmarks",
	}
	cmd.AddCommand(bookmarksListCmd())
	cmd.AddCommand(bookmarksAddCmd())
	cmd.AddCommand(bookmarksRemoveCmd())
	cmd.AddCommand(bookmarksToggleCmd())
	cmd.AddCommand(bookmarksNoteCmd())
	return cmd
}

func bookmarksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List bookmarks, newest first",
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

			items, err := engine.ListUserBookmarks(user)
			if err != nil {
				return err
			}
			return formatter().OutputBookmarks(items)
		},
	}
}

// refFlags collects what the CLI knows about an entry.
type refFlags struct {
	url   string
	title string
	note  string
}

func (f *refFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.url, "url", "", "entry URL")
	cmd.Flags().StringVar(&f.title, "title", "", "entry title, used when the entry is unknown")
}

func (f *refFlags) ref(args []string) storage.EntryRef {
	ref := storage.EntryRef{URL: f.url, Title: f.title}
	if len(args) > 0 {
		ref.EntryID = args[0]
	}
	return ref
}

func bookmarksAddCmd() *cobra.Command {
	var flags refFlags
	cmd := &cobra.Command{
		Use:   "add [entry-id]",
		Short: "Bookmark an entry by id or --url",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := currentUser()
			if err != nil {
				return err
			}
			ref := flags.ref(args)
			id := storage.CanonicalEntryID(ref)
			if id == "" {
				return storage.ErrNoEntryID
			}
			engine, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer engine.Close()

			if !engine.AddBookmark(user, ref) {
				return fmt.Errorf("failed to bookmark %s", id)
			}
			if flags.note != "" && !engine.SetBookmarkNote(user, id, flags.note) {
				return fmt.Errorf("failed to set note on %s", id)
			}
			formatter().Status("Bookmarked %s", id)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&flags.note, "note", "", "note to attach")
	return cmd
}

func bookmarksRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <entry-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a bookmark",
		Args:    cobra.ExactArgs(1),
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

			if !engine.RemoveBookmark(user, args[0]) {
				return fmt.Errorf("failed to remove bookmark %s", args[0])
			}
			formatter().Status("Removed %s", args[0])
			return nil
		},
	}
}

func bookmarksToggleCmd() *cobra.Command {
	var flags refFlags
	cmd := &cobra.Command{
		Use:   "toggle [entry-id]",
		Short: "Bookmark an entry, or remove the bookmark if present",
		Args:  cobra.MaximumNArgs(1),
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

			res, err := engine.ToggleBookmark(user, flags.ref(args))
			if err != nil {
				return err
			}
			if res.Bookmarked {
				formatter().Status("Bookmarked %s", res.EntryID)
			} else {
				formatter().Status("Removed %s", res.EntryID)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func bookmarksNoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "note <entry-id> <note>",
		Short: "Attach a note to a bookmark",
		Args:  cobra.ExactArgs(2),
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

			if !engine.SetBookmarkNote(user, args[0], args[1]) {
				return fmt.Errorf("no bookmark %s", args[0])
			}
			formatter().Status("Updated note on %s", args[0])
			return nil
		},
	}
}
