package cli

import (
	"context"

	"moodboard/internal/relay"
	"moodboard/internal/store"

	"github.com/spf13/cobra"
)

func newRelayCmd(app *App) *cobra.Command {
	var (
		addr      string
		advertise bool
	)

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the sync relay for windows in other processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, app, func(ctx context.Context, st store.Store) error {
				srv := relay.New(relay.Config{
					Addr:      addr,
					Advertise: advertise,
					Store:     st,
					Logger:    app.logger(),
				})
				app.logger().Info("relay listening", "addr", addr, "advertise", advertise)
				if err := srv.ListenAndServe(ctx); err != nil {
					return writeErr(cmd, err)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", app.cfg.RelayAddr, "Listen address")
	cmd.Flags().BoolVar(&advertise, "advertise", false, "Advertise the relay on the local network via mDNS")
	return cmd
}
