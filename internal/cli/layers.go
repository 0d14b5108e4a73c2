package cli

import (
	"context"
	"errors"
	"strings"

	"moodboard/internal/drag"
	"moodboard/internal/model"
	"moodboard/internal/session"
	"moodboard/internal/stack"
	"moodboard/internal/store"

	"github.com/spf13/cobra"
)

func newLayersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layers",
		Short: "Layer stack commands",
	}
	cmd.AddCommand(newLayersListCmd(app))
	cmd.AddCommand(newLayersAddCmd(app))
	cmd.AddCommand(newLayersMoveCmd(app))
	cmd.AddCommand(newLayersVisibilityCmd(app, "hide", false))
	cmd.AddCommand(newLayersVisibilityCmd(app, "show", true))
	cmd.AddCommand(newLayersFilterCmd(app))
	cmd.AddCommand(newLayersRemoveCmd(app))
	return cmd
}

func newLayersListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list <board-id>",
		Short: "List layers front to back",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, app, func(ctx context.Context, st store.Store) error {
				b, err := st.Load(ctx, args[0])
				if err != nil {
					return writeErr(cmd, err)
				}
				return writeOut(cmd, app, layersOf(b))
			})
		},
	}
}

func newLayersAddCmd(app *App) *cobra.Command {
	var (
		l    model.Layer
		kind string
	)

	cmd := &cobra.Command{
		Use:   "add <board-id>",
		Short: "Add a layer at the front of the stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l.Kind = model.LayerKind(strings.ToLower(strings.TrimSpace(kind)))
			l.Visible = true
			var added model.Layer
			err := withSession(cmd, app, args[0], session.RoleScript, func(s *session.Session) error {
				var err error
				added, err = s.AddLayer(l)
				return err
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, added)
		},
	}

	cmd.Flags().StringVar(&l.ID, "id", "", "Layer id (generated when empty)")
	cmd.Flags().StringVar(&kind, "kind", string(model.LayerKindImage), "Layer kind (image|video|gif|text|shape|palette)")
	cmd.Flags().StringVar(&l.Name, "name", "", "Layer name")
	cmd.Flags().StringVar(&l.Src, "src", "", "Media source")
	cmd.Flags().StringVar(&l.Text, "text", "", "Text content (text layers)")
	cmd.Flags().Float64Var(&l.X, "x", 0, "X position")
	cmd.Flags().Float64Var(&l.Y, "y", 0, "Y position")
	cmd.Flags().Float64Var(&l.Width, "width", 0, "Width")
	cmd.Flags().Float64Var(&l.Height, "height", 0, "Height")
	return cmd
}

func newLayersMoveCmd(app *App) *cobra.Command {
	var (
		before string
		after  string
		front  bool
		back   bool
	)

	cmd := &cobra.Command{
		Use:   "move <board-id> <layer-or-group-id>",
		Short: "Move a layer, or a whole group, in the stack",
		Long: strings.TrimSpace(`
Move a layer or group next to another layer or group.

--before places the moved unit just behind the target, --after just in front of it.
Moving onto a collapsed group, or moving a group, never splits the target group.`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			set := 0
			for _, v := range []bool{before != "", after != "", front, back} {
				if v {
					set++
				}
			}
			if set != 1 {
				return writeErr(cmd, errors.New("exactly one of --before, --after, --front, --back is required"))
			}

			var (
				res drag.Result
				out layerList
			)
			err := withSession(cmd, app, args[0], session.RoleScript, func(s *session.Session) error {
				b := s.Board()
				src := drag.Source{ID: args[1], IsGroup: hasGroup(b, args[1])}

				var (
					target drag.Target
					edge   drag.Edge
				)
				switch {
				case back:
					target = drag.Target{Kind: drag.TargetEmpty}
				case front:
					rows := s.Rows()
					if len(rows) == 0 {
						return nil
					}
					target, edge = targetFor(b, rowID(rows[0])), drag.After
				case before != "":
					target, edge = targetFor(b, before), drag.Before
				default:
					target, edge = targetFor(b, after), drag.After
				}
				if target.Kind == drag.TargetLayer {
					if _, ok := findLayer(b, target.ID); !ok {
						return stack.NotFoundError{Kind: "layer", ID: target.ID}
					}
				}

				var err error
				res, err = s.MoveLayer(src, target, edge)
				if err != nil {
					return err
				}
				out = layersOf(s.Board())
				return nil
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			if !app.jsonOutput() {
				return writeOut(cmd, app, out)
			}
			return writeOut(cmd, app, map[string]any{
				"changed":   nonNil(res.Changed),
				"cancelled": res.Cancelled,
				"layers":    out,
			})
		},
	}

	cmd.Flags().StringVar(&before, "before", "", "Place just behind this layer or group")
	cmd.Flags().StringVar(&after, "after", "", "Place just in front of this layer or group")
	cmd.Flags().BoolVar(&front, "front", false, "Bring to the front")
	cmd.Flags().BoolVar(&back, "back", false, "Send to the back")
	return cmd
}

func newLayersVisibilityCmd(app *App, use string, visible bool) *cobra.Command {
	short := "Hide a layer"
	if visible {
		short = "Show a layer"
	}
	return &cobra.Command{
		Use:   use + " <board-id> <layer-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out layerList
			err := withSession(cmd, app, args[0], session.RoleScript, func(s *session.Session) error {
				if err := s.SetVisible(args[1], visible); err != nil {
					return err
				}
				out = layersOf(s.Board())
				return nil
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, out)
		},
	}
}

func newLayersFilterCmd(app *App) *cobra.Command {
	var (
		f     model.Filters
		reset bool
	)

	cmd := &cobra.Command{
		Use:   "filter <board-id> <layer-id>",
		Short: "Set visual filters on a layer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out *model.Filters
			err := withSession(cmd, app, args[0], session.RoleScript, func(s *session.Session) error {
				if reset {
					return s.SetFilters(args[1], nil)
				}
				cur := model.DefaultFilters()
				if l, ok := findLayer(s.Board(), args[1]); ok && l.Filters != nil {
					cur = *l.Filters
				}
				// Only flags given on the command line override the current values.
				fields := map[string]*float64{
					"brightness": &cur.Brightness,
					"contrast":   &cur.Contrast,
					"saturation": &cur.Saturation,
					"hue":        &cur.Hue,
					"blur":       &cur.Blur,
					"grayscale":  &cur.Grayscale,
					"invert":     &cur.Invert,
					"opacity":    &cur.Opacity,
				}
				given := map[string]float64{
					"brightness": f.Brightness,
					"contrast":   f.Contrast,
					"saturation": f.Saturation,
					"hue":        f.Hue,
					"blur":       f.Blur,
					"grayscale":  f.Grayscale,
					"invert":     f.Invert,
					"opacity":    f.Opacity,
				}
				for name, dst := range fields {
					if cmd.Flags().Changed(name) {
						*dst = given[name]
					}
				}
				out = &cur
				return s.SetFilters(args[1], &cur)
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"id": args[1], "filters": out})
		},
	}

	def := model.DefaultFilters()
	cmd.Flags().Float64Var(&f.Brightness, "brightness", def.Brightness, "Brightness percent")
	cmd.Flags().Float64Var(&f.Contrast, "contrast", def.Contrast, "Contrast percent")
	cmd.Flags().Float64Var(&f.Saturation, "saturation", def.Saturation, "Saturation percent")
	cmd.Flags().Float64Var(&f.Hue, "hue", def.Hue, "Hue rotation in degrees")
	cmd.Flags().Float64Var(&f.Blur, "blur", def.Blur, "Blur radius in px")
	cmd.Flags().Float64Var(&f.Grayscale, "grayscale", def.Grayscale, "Grayscale percent")
	cmd.Flags().Float64Var(&f.Invert, "invert", def.Invert, "Invert percent")
	cmd.Flags().Float64Var(&f.Opacity, "opacity", def.Opacity, "Opacity percent")
	cmd.Flags().BoolVar(&reset, "reset", false, "Clear all filters")
	return cmd
}

func newLayersRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <board-id> <layer-id>",
		Short: "Remove a layer from the board",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out layerList
			err := withSession(cmd, app, args[0], session.RoleScript, func(s *session.Session) error {
				if err := s.RemoveLayer(args[1]); err != nil {
					return err
				}
				out = layersOf(s.Board())
				return nil
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, out)
		},
	}
}

func hasGroup(b *model.Board, id string) bool {
	id = strings.TrimSpace(id)
	for _, g := range b.Groups {
		if g.ID == id {
			return true
		}
	}
	return false
}

func targetFor(b *model.Board, id string) drag.Target {
	id = strings.TrimSpace(id)
	if hasGroup(b, id) {
		return drag.Target{Kind: drag.TargetGroup, ID: id}
	}
	return drag.Target{Kind: drag.TargetLayer, ID: id}
}

func rowID(r stack.Row) string {
	if r.Kind == stack.RowGroup {
		return r.GroupID
	}
	return r.Entry.ID
}

func findLayer(b *model.Board, id string) (model.Layer, bool) {
	st := stack.New(b)
	l, _, ok := st.Find(id)
	if !ok {
		return model.Layer{}, false
	}
	return *l, true
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
