package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"simulchat/internal/config"
	"simulchat/internal/display"
	"simulchat/internal/message"
	"simulchat/internal/simulcast"
	"simulchat/internal/sink"
	"simulchat/internal/twitch"
	"simulchat/internal/youtube"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file")
	twitchChannels := flag.String("twitch", "", "Comma-separated Twitch channel names to watch")
	youtubeTargets := flag.String("youtube", "", "Comma-separated YouTube video IDs, watch URLs, channel IDs, or @handles")
	youtubeMode := flag.String("youtube-mode", "auto", "YouTube chat mode: auto, live, or replay")
	sinkURL := flag.String("sink-url", "", "WebSocket URL to forward chat events to (ws:// or wss://)")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := resolveConfig(*configPath, *twitchChannels, *youtubeTargets, *youtubeMode, *sinkURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	sources, err := buildSources(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		cancel()
	}()

	for _, src := range sources {
		slog.Info("watching", slog.String("source", src.ID.String()))
	}
	events := simulcast.Merge(ctx, sources...)

	// Fan-out: printer always receives; the sink gets a copy when
	// configured, dropped if it can't keep up so it never stalls the
	// printer.
	printerCh := make(chan simulcast.Event, 100)
	var sinkCh chan simulcast.Event
	if cfg.Sink.URL != "" {
		sinkCh = make(chan simulcast.Event, 100)
		sinkClient, err := sink.NewClient(cfg.Sink.URL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		go func() {
			if err := sinkClient.Run(ctx, sinkCh); err != nil && ctx.Err() == nil {
				slog.Error("sink stopped", slog.Any("err", err))
			}
		}()
	}

	go func() {
		for ev := range events {
			printerCh <- ev
			if sinkCh != nil {
				select {
				case sinkCh <- ev:
				default:
				}
			}
		}
		close(printerCh)
		if sinkCh != nil {
			close(sinkCh)
		}
	}()

	display.NewPrinter().Run(printerCh)
}

// resolveConfig merges the config file with CLI flags; flags add to whatever
// the file configures.
func resolveConfig(path, twitchChannels, youtubeTargets, youtubeMode, sinkURL string) (config.Config, error) {
	var cfg config.Config
	if path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return cfg, err
		}
	}
	for _, ch := range splitList(twitchChannels) {
		cfg.Twitch = append(cfg.Twitch, config.TwitchSource{Channel: ch})
	}
	for _, target := range splitList(youtubeTargets) {
		cfg.YouTube = append(cfg.YouTube, config.YouTubeSource{ID: target, Mode: youtubeMode})
	}
	if sinkURL != "" {
		cfg.Sink.URL = sinkURL
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// buildSources turns a validated config into merge sources.
func buildSources(cfg config.Config) ([]simulcast.Source, error) {
	var sources []simulcast.Source
	for _, tw := range cfg.Twitch {
		name := strings.ToLower(strings.TrimPrefix(tw.Channel, "#"))
		sources = append(sources, simulcast.Source{
			ID:       simulcast.SourceID{Platform: message.Twitch, Name: name},
			Streamer: twitch.NewClient(tw.Channel),
		})
	}
	for _, yt := range cfg.YouTube {
		var mode youtube.ModeSelect
		switch yt.Mode {
		case "auto":
			mode = youtube.Auto
		case "live":
			mode = youtube.ForceLive
		case "replay":
			mode = youtube.ForceReplay
		default:
			return nil, fmt.Errorf("youtube source %q: unknown mode %q", yt.ID, yt.Mode)
		}
		sources = append(sources, simulcast.Source{
			ID:       simulcast.SourceID{Platform: message.YouTube, Name: yt.ID},
			Streamer: youtube.NewClient(yt.ID, mode),
		})
	}
	return sources, nil
}
