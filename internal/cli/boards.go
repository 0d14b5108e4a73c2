package cli

import (
	"context"
	"strings"

	"moodboard/internal/session"
	"moodboard/internal/store"

	"github.com/spf13/cobra"
)

func newBoardsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boards",
		Short: "Board commands",
	}
	cmd.AddCommand(newBoardsListCmd(app))
	cmd.AddCommand(newBoardsCreateCmd(app))
	cmd.AddCommand(newBoardsShowCmd(app))
	cmd.AddCommand(newBoardsRenameCmd(app))
	cmd.AddCommand(newBoardsDeleteCmd(app))
	return cmd
}

func newBoardsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List boards, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, app, func(ctx context.Context, st store.Store) error {
				metas, err := st.List(ctx)
				if err != nil {
					return writeErr(cmd, err)
				}
				return writeOut(cmd, app, boardList(metas))
			})
		},
	}
}

func newBoardsCreateCmd(app *App) *cobra.Command {
	var name, bg string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, app, func(ctx context.Context, st store.Store) error {
				b, err := st.Create(ctx, strings.TrimSpace(name), strings.TrimSpace(bg))
				if err != nil {
					return writeErr(cmd, err)
				}
				return writeOut(cmd, app, b)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Board name")
	cmd.Flags().StringVar(&bg, "bg", store.DefaultBgColor, "Background color")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newBoardsShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <board-id>",
		Short: "Show a board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, app, func(ctx context.Context, st store.Store) error {
				b, err := st.Load(ctx, args[0])
				if err != nil {
					return writeErr(cmd, err)
				}
				if !app.jsonOutput() {
					return writeOut(cmd, app, boardSummary{b})
				}
				return writeOut(cmd, app, b)
			})
		},
	}
}

func newBoardsRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <board-id> <name>",
		Short: "Rename a board",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withSession(cmd, app, args[0], session.RoleScript, func(s *session.Session) error {
				return s.Rename(args[1])
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return showMeta(cmd, app, args[0])
		},
	}
}

func newBoardsDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <board-id>",
		Short: "Delete a board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, app, func(ctx context.Context, st store.Store) error {
				if err := st.Delete(ctx, args[0]); err != nil {
					return writeErr(cmd, err)
				}
				return writeOut(cmd, app, map[string]any{"id": args[0], "deleted": true})
			})
		},
	}
}

// showMeta prints the stored metadata of a board after a session wrote it.
func showMeta(cmd *cobra.Command, app *App, boardID string) error {
	return withStore(cmd, app, func(ctx context.Context, st store.Store) error {
		b, err := st.Load(ctx, boardID)
		if err != nil {
			return writeErr(cmd, err)
		}
		return writeOut(cmd, app, b.Meta())
	})
}
