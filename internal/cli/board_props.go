package cli

import (
	"moodboard/internal/model"
	"moodboard/internal/session"

	"github.com/spf13/cobra"
)

func newBackgroundCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "background <board-id> <color>",
		Short: "Set the board background color",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withSession(cmd, app, args[0], session.RoleScript, func(s *session.Session) error {
				return s.SetBackground(args[1])
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return showMeta(cmd, app, args[0])
		},
	}
}

func newViewCmd(app *App) *cobra.Command {
	var (
		panX, panY, zoom float64
	)

	cmd := &cobra.Command{
		Use:   "view <board-id>",
		Short: "Store the board's pan and zoom",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var vs model.ViewState
			err := withSession(cmd, app, args[0], session.RoleScript, func(s *session.Session) error {
				vs = s.Board().ViewState
				if cmd.Flags().Changed("pan-x") {
					vs.Pan.X = panX
				}
				if cmd.Flags().Changed("pan-y") {
					vs.Pan.Y = panY
				}
				if cmd.Flags().Changed("zoom") {
					vs.Zoom = zoom
				}
				return s.SetViewState(vs)
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"id": args[0], "viewState": vs})
		},
	}

	cmd.Flags().Float64Var(&panX, "pan-x", 0, "Horizontal pan")
	cmd.Flags().Float64Var(&panY, "pan-y", 0, "Vertical pan")
	cmd.Flags().Float64Var(&zoom, "zoom", 1, "Zoom factor (> 0)")
	return cmd
}
