// channeltap opens one realtime channel and prints decoded events to the
// console.
// Usage: go run ./cmd/channeltap --config configs/feedsync.example.yaml --channel feed
//
// The token comes from api.token or api.token_path in the config; both
// support ${VAR} expansion, e.g. FEEDSYNC_TOKEN.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/feedsync/internal/auth"
	"github.com/rickgao/feedsync/internal/channel"
	"github.com/rickgao/feedsync/internal/config"
	"github.com/rickgao/feedsync/internal/connection"
	"github.com/rickgao/feedsync/internal/loop"
)

func main() {
	configPath := flag.String("config", "configs/feedsync.example.yaml", "path to config file")
	kind := flag.String("channel", "feed", "channel to open: feed, messaging or notifications")
	conversation := flag.String("conversation", "", "conversation id for the messaging channel")
	verbose := flag.Bool("verbose", false, "print full event JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// Load config
	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	creds, err := auth.LoadCredentials(cfg.API.Token, cfg.API.TokenPath)
	if err != nil {
		logger.Error("failed to load credentials", "error", err)
		os.Exit(1)
	}

	endpoints := channel.Endpoints{
		WSURL:             cfg.API.WSURL,
		FeedPath:          cfg.Channels.FeedPath,
		ConversationPath:  cfg.Channels.ConversationPath,
		NotificationsPath: cfg.Channels.NotificationsPath,
		Token:             creds.Token,
	}

	var (
		chCfg connection.ChannelConfig
		url   connection.URLFunc
	)
	switch *kind {
	case "feed":
		chCfg = connection.DefaultChannelConfig(connection.KindFeed)
		chCfg.HeartbeatInterval = cfg.Channels.FeedHeartbeat
		url = endpoints.FeedURL
	case "messaging":
		if *conversation == "" {
			logger.Error("--conversation is required for the messaging channel")
			os.Exit(1)
		}
		chCfg = connection.DefaultChannelConfig(connection.KindMessaging)
		chCfg.HeartbeatInterval = cfg.Channels.MessagingHeartbeat
		id := *conversation
		url = func() (string, error) { return endpoints.ConversationURL(id) }
	case "notifications":
		chCfg = connection.DefaultChannelConfig(connection.KindNotifications)
		chCfg.HeartbeatInterval = cfg.Channels.NotificationsHeartbeat
		url = endpoints.NotificationsURL
	default:
		logger.Error("unknown channel", "channel", *kind)
		os.Exit(1)
	}
	chCfg.ReconnectBaseWait = cfg.Channels.ReconnectBaseDelay
	chCfg.ReconnectMaxWait = cfg.Channels.ReconnectMaxDelay
	chCfg.DialTimeout = cfg.Channels.DialTimeout
	chCfg.StaleTimeout = cfg.Channels.StaleTimeout
	if chCfg.StaleTimeout == 0 {
		chCfg.StaleTimeout = chCfg.HeartbeatInterval * 5 / 2
	}

	lp := loop.New(nil, logger)
	ch := connection.NewChannel(chCfg, lp, nil, logger)

	var frames, malformed int
	ch.OnMessage(func(raw []byte) {
		frames++
		ev, err := channel.Decode(raw)
		if err != nil {
			malformed++
			fmt.Printf("[MALFORMED] %s (%v)\n", raw, err)
			return
		}
		printEvent(ev, *verbose)
	})
	ch.OnOpen(func() {
		fmt.Printf("[OPEN] %s\n", *kind)
	})
	ch.OnClose(func(err error) {
		fmt.Printf("[CLOSED] %s err=%v\n", *kind, err)
	})

	lp.Post(func() { ch.Open(url) })

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				var stats connection.ChannelStats
				var received, bad int
				if err := lp.Call(ctx, func() {
					stats = ch.Stats()
					received, bad = frames, malformed
				}); err != nil {
					return
				}
				logger.Info("stats",
					"state", stats.State,
					"opens", stats.Opens,
					"failures", stats.Failures,
					"retry_delay", stats.RetryDelay,
					"frames", received,
					"malformed", bad,
				)
			}
		}
	}()

	logger.Info("tapping channel - press Ctrl+C to stop", "channel", *kind)

	// Close the socket on the loop once shutdown starts, then let the loop
	// finish queued work.
	go func() {
		<-ctx.Done()
		lp.Post(ch.Close)
		lp.Close()
	}()

	lp.Run(context.Background())

	logger.Info("shutdown complete")
}

func printEvent(ev channel.Event, verbose bool) {
	if verbose {
		data, _ := json.MarshalIndent(ev, "", "  ")
		fmt.Printf("[EVENT] %s\n", data)
		return
	}

	switch {
	case ev.Message != nil:
		fmt.Printf("[%s] id=%s conversation=%s sender=%s deleted=%t\n",
			ev.Type, ev.Message.ID, ev.Message.ConversationID, ev.Message.SenderID, ev.Message.Deleted)
	case ev.Notification != nil:
		fmt.Printf("[%s] id=%s kind=%s actor=%s\n",
			ev.Type, ev.Notification.ID, ev.Notification.Kind, ev.Notification.ActorID)
	default:
		fmt.Printf("[%s]\n", ev.Type)
	}
}
