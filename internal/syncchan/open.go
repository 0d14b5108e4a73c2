package syncchan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

type Mode string

const (
	ModeMemory Mode = "memory"
	ModeRedis  Mode = "redis"
	ModeWS     Mode = "ws"
	ModePoll   Mode = "poll"
)

// RelayAuto asks Open to find the relay through mDNS.
const RelayAuto = "auto"

type Config struct {
	Mode         Mode
	RedisURL     string
	RelayURL     string
	PollInterval time.Duration
	// Loader backs the polling transport, both as a mode and as the fallback.
	Loader BoardLoader
	// Hub is shared by every window of this process in memory mode.
	Hub    *Hub
	Logger *slog.Logger
}

// Open builds the configured transport. When the primary transport cannot start, it falls
// back to polling and logs once; the failure is not returned.
func Open(ctx context.Context, cfg Config) (Channel, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	mode := Mode(strings.ToLower(strings.TrimSpace(string(cfg.Mode))))

	var (
		ch  Channel
		err error
	)
	switch mode {
	case "", ModeMemory:
		if cfg.Hub != nil {
			return cfg.Hub, nil
		}
		return NewHub(), nil
	case ModePoll:
		return newPolling(cfg, log)
	case ModeRedis:
		if strings.TrimSpace(cfg.RedisURL) == "" {
			err = errors.New("redis url not set")
			break
		}
		ch, err = NewRedisChannel(cfg.RedisURL, log)
	case ModeWS:
		ch, err = openWS(ctx, cfg.RelayURL, log)
	default:
		return nil, fmt.Errorf("unknown sync mode %q (expected memory|redis|ws|poll)", cfg.Mode)
	}
	if err == nil {
		return ch, nil
	}

	log.Warn("sync channel unavailable; falling back to store polling", "mode", mode, "err", err)
	return newPolling(cfg, log)
}

func newPolling(cfg Config, log *slog.Logger) (Channel, error) {
	if cfg.Loader == nil {
		return nil, errors.New("polling sync needs a board store")
	}
	return NewPollingChannel(cfg.Loader, cfg.PollInterval, log), nil
}

func openWS(ctx context.Context, relayURL string, log *slog.Logger) (*WSChannel, error) {
	relayURL = strings.TrimSpace(relayURL)
	if relayURL == "" {
		return nil, errors.New("relay url not set")
	}
	if relayURL == RelayAuto {
		u, err := Discover(ctx, 2*time.Second)
		if err != nil {
			return nil, err
		}
		log.Info("discovered relay", "url", u)
		relayURL = u
	}
	ch, err := NewWSChannel(relayURL, log)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := ch.Ping(pingCtx); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return ch, nil
}
