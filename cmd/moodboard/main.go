package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"moodboard/internal/cli"
	"moodboard/internal/model"
)

func rewriteDirectBoardArgs(argv []string) []string {
	// Convenience: `moodboard <board-id>` works like `moodboard panel <board-id>`.
	//
	// Cobra treats the first non-flag token as a subcommand, so we rewrite argv before parsing.
	// Persistent flags may come first (e.g. `moodboard --dir ... <board-id>`), so we look for
	// the first positional token, not just argv[1].
	if len(argv) < 2 {
		return argv
	}

	// Minimal persistent-flag awareness. Unknown flags are skipped without consuming a value
	// so the board id is never swallowed.
	valueFlags := map[string]bool{
		"--dir":          true,
		"--store":        true,
		"--database-url": true,
		"--sync":         true,
		"--redis-url":    true,
		"--relay-url":    true,
		"--format":       true,
		"--log-level":    true,
		"--log-format":   true,
	}
	boolFlags := map[string]bool{
		"--pretty": true,
	}

	insertPanel := func(at int) []string {
		out := make([]string, 0, len(argv)+1)
		out = append(out, argv[:at]...)
		out = append(out, "panel")
		out = append(out, argv[at:]...)
		return out
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			if i+1 < len(argv) && model.HasPrefix(argv[i+1], "board") {
				return insertPanel(i + 1)
			}
			return argv
		}

		if strings.HasPrefix(a, "-") {
			if strings.Contains(a, "=") || boolFlags[a] {
				continue
			}
			if valueFlags[a] {
				i++ // skip value if present
			}
			continue
		}

		// First positional token.
		if model.HasPrefix(a, "board") {
			return insertPanel(i)
		}
		return argv
	}

	return argv
}

func main() {
	os.Args = rewriteDirectBoardArgs(os.Args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
