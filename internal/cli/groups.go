package cli

import (
	"moodboard/internal/model"
	"moodboard/internal/session"

	"github.com/spf13/cobra"
)

func newGroupsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Layer group commands",
	}
	cmd.AddCommand(newGroupsCreateCmd(app))
	cmd.AddCommand(newGroupsEditCmd(app, "add <board-id> <group-id> <layer-id>", "Add a layer to a group", 3,
		func(s *session.Session, args []string) error { return s.AddToGroup(args[1], args[2]) }))
	cmd.AddCommand(newGroupsEditCmd(app, "remove <board-id> <group-id> <layer-id>", "Remove a layer from a group", 3,
		func(s *session.Session, args []string) error { return s.RemoveFromGroup(args[1], args[2]) }))
	cmd.AddCommand(newGroupsEditCmd(app, "delete <board-id> <group-id>", "Delete a group, keeping its layers", 2,
		func(s *session.Session, args []string) error { return s.DeleteGroup(args[1]) }))
	cmd.AddCommand(newGroupsEditCmd(app, "rename <board-id> <group-id> <name>", "Rename a group", 3,
		func(s *session.Session, args []string) error { return s.RenameGroup(args[1], args[2]) }))
	cmd.AddCommand(newGroupsEditCmd(app, "collapse <board-id> <group-id>", "Collapse a group in the layer panel", 2,
		func(s *session.Session, args []string) error { return s.SetGroupCollapsed(args[1], true) }))
	cmd.AddCommand(newGroupsEditCmd(app, "expand <board-id> <group-id>", "Expand a group in the layer panel", 2,
		func(s *session.Session, args []string) error { return s.SetGroupCollapsed(args[1], false) }))
	return cmd
}

func newGroupsCreateCmd(app *App) *cobra.Command {
	var (
		name   string
		layers []string
	)

	cmd := &cobra.Command{
		Use:   "create <board-id>",
		Short: "Group at least two layers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var grp model.Group
			err := withSession(cmd, app, args[0], session.RoleScript, func(s *session.Session) error {
				var err error
				grp, err = s.CreateGroup(name, layers)
				return err
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, grp)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Group name (default: Group N)")
	cmd.Flags().StringSliceVar(&layers, "layers", nil, "Member layer ids (comma separated, at least 2)")
	_ = cmd.MarkFlagRequired("layers")
	return cmd
}

// newGroupsEditCmd builds a command that runs one group edit and prints the resulting groups.
func newGroupsEditCmd(app *App, use, short string, nargs int, edit func(s *session.Session, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out groupList
			err := withSession(cmd, app, args[0], session.RoleScript, func(s *session.Session) error {
				if err := edit(s, args); err != nil {
					return err
				}
				out = groupList(s.Board().Groups)
				return nil
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			if out == nil {
				out = groupList{}
			}
			return writeOut(cmd, app, out)
		},
	}
}
