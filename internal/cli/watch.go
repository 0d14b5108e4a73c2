package cli

import (
	"context"

	"moodboard/internal/format"
	"moodboard/internal/store"

	"github.com/spf13/cobra"
)

func newWatchCmd(app *App) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "watch <board-id>",
		Short: "Print a board's sync messages as JSON lines",
		Long: "Print every sync message for a board, one JSON object per line, until interrupted.\n" +
			"The memory transport only reaches windows of this process; use --sync redis|ws|poll to follow other processes.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, app, func(ctx context.Context, st store.Store) error {
				if _, err := st.Load(ctx, args[0]); err != nil {
					return writeErr(cmd, err)
				}
				ch, err := app.openChannel(ctx, st)
				if err != nil {
					return writeErr(cmd, err)
				}
				defer ch.Close()

				stream, unsub, err := ch.Subscribe(ctx, args[0])
				if err != nil {
					return writeErr(cmd, err)
				}
				defer unsub()

				seen := 0
				for {
					select {
					case <-ctx.Done():
						return nil
					case msg, ok := <-stream:
						if !ok {
							return nil
						}
						if err := format.WriteJSON(cmd.OutOrStdout(), msg, false); err != nil {
							return err
						}
						seen++
						if count > 0 && seen >= count {
							return nil
						}
					}
				}
			})
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "Exit after this many messages (0 = run until interrupted)")
	return cmd
}
