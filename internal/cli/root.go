package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"moodboard/internal/config"
	"moodboard/internal/format"
	"moodboard/internal/logging"
	"moodboard/internal/session"
	"moodboard/internal/store"
	"moodboard/internal/syncchan"

	"github.com/spf13/cobra"
)

type App struct {
	Dir         string
	Store       string
	DatabaseURL string
	Sync        string
	RedisURL    string
	RelayURL    string
	PrettyJSON  bool
	Format      string
	LogLevel    string
	LogFormat   string

	cfg config.Config
	log *slog.Logger
	// hub connects windows of this process in memory sync mode.
	hub *syncchan.Hub
}

func NewRootCmd() *cobra.Command {
	cfg := config.Load()
	app := &App{cfg: cfg, hub: syncchan.NewHub()}

	cmd := &cobra.Command{
		Use:          "moodboard",
		Short:        "Moodboard layer stack, groups and cross-window sync",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Create a board and add two layers
  moodboard boards create --name "Refs"
  moodboard layers add board-xxx --name sky --src sky.png

  # Open the layer panel (shortcut for: moodboard panel <board-id>)
  moodboard board-xxx

  # Follow a board from another terminal
  moodboard --sync ws watch board-xxx
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		log, err := logging.New(app.LogLevel, app.LogFormat, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		app.log = log
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.Dir, "dir", cfg.Dir, "Data dir for the sqlite and file stores")
	cmd.PersistentFlags().StringVar(&app.Store, "store", cfg.Store, "Board store (sqlite|file|postgres)")
	cmd.PersistentFlags().StringVar(&app.DatabaseURL, "database-url", cfg.DatabaseURL, "Postgres URL for --store postgres")
	cmd.PersistentFlags().StringVar(&app.Sync, "sync", cfg.Sync, "Sync transport (memory|redis|ws|poll)")
	cmd.PersistentFlags().StringVar(&app.RedisURL, "redis-url", cfg.RedisURL, "Redis URL for --sync redis")
	cmd.PersistentFlags().StringVar(&app.RelayURL, "relay-url", cfg.RelayURL, "Relay URL for --sync ws ('auto' discovers it via mDNS)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("MOODBOARD_FORMAT", "json"), "Output format (json|text|markdown)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", cfg.LogLevel, "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&app.LogFormat, "log-format", cfg.LogFormat, "Log format (text|json)")

	cmd.AddCommand(newBoardsCmd(app))
	cmd.AddCommand(newLayersCmd(app))
	cmd.AddCommand(newGroupsCmd(app))
	cmd.AddCommand(newBackgroundCmd(app))
	cmd.AddCommand(newViewCmd(app))
	cmd.AddCommand(newPanelCmd(app))
	cmd.AddCommand(newWatchCmd(app))
	cmd.AddCommand(newRelayCmd(app))

	return cmd
}

func (app *App) logger() *slog.Logger {
	if app.log == nil {
		return logging.Discard()
	}
	return app.log
}

func (app *App) openStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, store.Options{
		Backend:     store.Backend(app.Store),
		Dir:         app.Dir,
		DatabaseURL: app.DatabaseURL,
	})
}

func (app *App) openChannel(ctx context.Context, st store.Store) (syncchan.Channel, error) {
	return syncchan.Open(ctx, syncchan.Config{
		Mode:         syncchan.Mode(app.Sync),
		RedisURL:     app.RedisURL,
		RelayURL:     app.RelayURL,
		PollInterval: app.cfg.PollInterval,
		Loader:       st,
		Hub:          app.hub,
		Logger:       app.logger(),
	})
}

// withSession opens boardID as a window, runs fn and closes the window, which flushes
// any edit fn made.
func withSession(cmd *cobra.Command, app *App, boardID string, role session.Role, fn func(s *session.Session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := app.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	ch, err := app.openChannel(ctx, st)
	if err != nil {
		return err
	}
	// The shared memory hub outlives a single command.
	if ch != syncchan.Channel(app.hub) {
		defer ch.Close()
	}

	s, err := session.Open(ctx, boardID, session.Options{
		Store:    st,
		Channel:  ch,
		Role:     role,
		Debounce: app.cfg.Debounce,
		Logger:   app.logger(),
	})
	if err != nil {
		return err
	}
	runErr := fn(s)
	if err := s.Close(context.WithoutCancel(ctx)); err != nil && runErr == nil {
		runErr = fmt.Errorf("save board: %w", err)
	}
	return runErr
}

func withStore(cmd *cobra.Command, app *App, fn func(ctx context.Context, st store.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := app.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, st)
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

// writeOut wraps v in the {"data": ...} envelope for JSON. Text and markdown output render
// v itself, as a table or summary when it has one.
func writeOut(cmd *cobra.Command, app *App, v any) error {
	if !app.jsonOutput() {
		return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
	}
	return format.Write(cmd.OutOrStdout(), map[string]any{"data": v}, app.Format, app.PrettyJSON)
}

func (app *App) jsonOutput() bool {
	return app.Format == "" || app.Format == "json"
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
