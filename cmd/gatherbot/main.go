package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TheLazyLemur/gatherbot/internal/config"
	"github.com/TheLazyLemur/gatherbot/internal/core"
	"github.com/TheLazyLemur/gatherbot/internal/dashboard"
	"github.com/TheLazyLemur/gatherbot/internal/handler"
	"github.com/TheLazyLemur/gatherbot/internal/logging"
	"github.com/TheLazyLemur/gatherbot/internal/script"
	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 5 * time.Second
	// gather runs in flight get this long to finish before the session closes
	drainTimeout = 30 * time.Second
	drainPoll    = 250 * time.Millisecond
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("fatal", tint.Err(err))
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile, envFile string

	runE := func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), configFile, envFile)
	}

	root := &cobra.Command{
		Use:           "gatherbot",
		Short:         "Discord bot that gathers everyone for games",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runE,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, toml or json)")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load instead of .env")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Connect to Discord and serve slash commands",
			RunE:  runE,
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "gatherbot", version)
			},
		},
		&cobra.Command{
			Use:   "commands",
			Short: "Print the slash command payloads as JSON",
			RunE: func(cmd *cobra.Command, _ []string) error {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return errors.Wrap(enc.Encode(handler.SlashCommands()), "encoding commands")
			},
		},
	)
	return root
}

func loadGatherScript(path string) (core.Script, error) {
	if path == "" {
		return script.Builtin(script.GatherName)
	}
	return script.LoadFile(path)
}

// waitForRuns polls runs until none are active or timeout passes. It reports
// whether everything finished.
func waitForRuns(runs dashboard.RunCounter, timeout, poll time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for runs.ActiveRuns() > 0 {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(poll)
	}
	return true
}

func run(ctx context.Context, configFile, envFile string) error {
	cfg, err := config.LoadFromEnv(configFile, envFile)
	if err != nil {
		return errors.Wrap(err, "loading config")
	}

	// set up logging before anything talks to discord
	level := new(slog.LevelVar)
	level.Set(cfg.LogLevel)
	var logHandler slog.Handler = logging.NewHandler(os.Stderr, cfg.LogFormat, level)
	var hub *dashboard.Hub
	if cfg.DashboardAddr != "" {
		hub = dashboard.NewHub()
		logHandler = dashboard.NewBroadcastHandler(hub, logHandler)
	}
	logging.Install(logHandler)

	gather, err := loadGatherScript(cfg.GatherScript)
	if err != nil {
		return errors.Wrap(err, "loading gather script")
	}
	slog.Info("gather script loaded", "steps", len(gather), "messages", gather.Messages(), "source", cfg.GatherScript)

	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return errors.Wrap(err, "creating discord session")
	}
	dg.LogLevel = logging.DiscordgoLevel(cfg.LogLevel)
	// slash commands need no privileged intents
	dg.Identify.Intents = discordgo.IntentsGuilds

	bot := handler.NewHandler(gather, core.WithPerChar(cfg.TypingPerChar))

	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		handler.OnReady(s, r, cfg.ApplicationID, cfg.DevGuildID)
		if hub != nil && r.User != nil {
			hub.BroadcastSticky(dashboard.Message{
				Type:  "status",
				Msg:   "connected",
				Attrs: map[string]string{"user": r.User.Username},
			})
		}
	})
	dg.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		bot.OnInteractionCreate(s, i)
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := dg.Open(); err != nil {
			return errors.Wrap(err, "opening discord connection")
		}
		slog.Info("bot started", "application_id", cfg.ApplicationID)

		<-ctx.Done()
		slog.Info("shutting down", "active_runs", bot.ActiveRuns())
		if !waitForRuns(bot, drainTimeout, drainPoll) {
			slog.Warn("closing with gather runs still active", "active_runs", bot.ActiveRuns())
		}
		return errors.Wrap(dg.Close(), "closing discord connection")
	})

	if hub != nil {
		srv := &http.Server{
			Addr:              cfg.DashboardAddr,
			Handler:           dashboard.NewServer(hub, bot, cfg.DashboardPassword).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go hub.Run()

		g.Go(func() error {
			slog.Info("dashboard listening", "addr", cfg.DashboardAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "serving dashboard")
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			hub.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return errors.Wrap(srv.Shutdown(shutdownCtx), "shutting down dashboard")
		})
	}

	return g.Wait()
}
