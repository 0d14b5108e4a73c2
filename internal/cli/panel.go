package cli

import (
	"moodboard/internal/session"
	"moodboard/internal/tui"

	"github.com/spf13/cobra"
)

func newPanelCmd(app *App) *cobra.Command {
	var companion bool

	cmd := &cobra.Command{
		Use:   "panel <board-id>",
		Short: "Open the interactive layer panel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role := session.RolePrimary
			if companion {
				role = session.RoleCompanion
			}
			err := withSession(cmd, app, args[0], role, func(s *session.Session) error {
				return tui.Run(s)
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&companion, "companion", false, "Open as a companion window that follows the primary's state")
	return cmd
}
