package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/lhdbsbz/inboxagent/internal/agent"
	"github.com/lhdbsbz/inboxagent/internal/config"
	"github.com/lhdbsbz/inboxagent/internal/gateway"
	"github.com/lhdbsbz/inboxagent/internal/message"
	"github.com/lhdbsbz/inboxagent/internal/meta"
	"github.com/lhdbsbz/inboxagent/internal/poller"
	"github.com/lhdbsbz/inboxagent/internal/reply"
	"github.com/lhdbsbz/inboxagent/internal/replylog"
	cli "github.com/urfave/cli/v2"
)

const version = "0.1.0"

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	app := cli.App{
		Name:    "inboxagent",
		Usage:   "rule-based auto replies for Facebook and Instagram inboxes",
		Version: version,
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "path to config.yaml (default $INBOXAGENT_HOME/config.yaml)",
			EnvVars: []string{"INBOXAGENT_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "debug, info, warn or error",
			Value:   "info",
			EnvVars: []string{"INBOXAGENT_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.BoolFlag{
			Name:    "log-json",
			Usage:   "log as JSON instead of text",
			EnvVars: []string{"INBOXAGENT_LOG_JSON"},
		},
	}
	app.Before = func(cctx *cli.Context) error {
		if err := setupLogging(cctx.String("log-level"), cctx.Bool("log-json")); err != nil {
			return err
		}
		config.SetPath(cctx.String("config"))
		return nil
	}

	app.Commands = []*cli.Command{
		serveCmd,
		replyCmd,
		checkCmd,
		initCmd,
		versionCmd,
	}

	return app.Run(args)
}

func setupLogging(level string, asJSON bool) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if asJSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// loadConfig loads and validates the config file and makes it current.
func loadConfig() (*config.Config, error) {
	path := config.Path()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	config.Set(cfg)
	return cfg, nil
}

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "start the gateway (and the poller when enabled)",
	Action: func(cctx *cli.Context) error {
		home := config.ResolveHome()
		slog.Info("inboxagent starting", "version", version, "home", home)
		if err := os.MkdirAll(config.DataDir(), 0755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}

		cfg, err := loadConfig()
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("config not found, using defaults", "path", config.Path())
			cfg = config.DefaultConfig()
			config.Set(cfg)
		} else if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		go config.Watch(ctx)

		graph := meta.NewClient(meta.Options{
			BaseURL:           cfg.Meta.GraphURL,
			Version:           cfg.Meta.GraphVersion,
			RequestsPerSecond: cfg.Meta.RequestsPerSecond,
			Timeout:           cfg.Meta.Timeout,
			MaxRetries:        cfg.Meta.MaxRetries,
		})
		responder := agent.NewResponder(replylog.New(config.ReplyLogPath()))
		dedup := message.NewDedup(cfg.Poller.DedupSize, cfg.Poller.DedupTTL)

		p := poller.New(graph, responder, dedup)
		if err := p.Start(cfg); err != nil {
			return err
		}
		defer p.Stop()
		config.RegisterOnReload(func(next *config.Config) {
			if err := p.Reschedule(next); err != nil {
				slog.Warn("poller reschedule failed", "error", err)
			}
		})

		srv := gateway.NewServer(responder, graph, p, dedup)
		return srv.Start(ctx)
	},
}

var replyCmd = &cli.Command{
	Name:  "reply",
	Usage: "generate a reply for one message with the configured rules and print it as JSON",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "text",
			Usage:    "incoming message text",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "platform",
			Usage: "facebook or instagram",
			Value: string(reply.PlatformFacebook),
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "sender display name",
		},
		&cli.StringFlag{
			Name:  "thread-type",
			Usage: "comment or direct",
			Value: string(reply.ThreadDirect),
		},
	},
	Action: func(cctx *cli.Context) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		platform := reply.Platform(cctx.String("platform"))
		if !platform.Valid() {
			return fmt.Errorf("unknown platform %q", platform)
		}
		threadType := reply.ThreadType(cctx.String("thread-type"))
		if threadType != reply.ThreadDirect && threadType != reply.ThreadComment {
			return fmt.Errorf("unknown thread type %q", threadType)
		}

		generated, err := reply.Generate(cctx.String("text"), reply.ReplyContext{
			Name:       cctx.String("name"),
			Platform:   platform,
			ThreadType: threadType,
		}, cfg.Agent, cfg.Rules)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			reply.GeneratedReply
			Outcome reply.Outcome `json:"outcome"`
		}{generated, generated.Outcome})
	},
}

var checkCmd = &cli.Command{
	Name:  "check",
	Usage: "load and validate the config, listing every invalid rule",
	Action: func(cctx *cli.Context) error {
		path := config.Path()
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		if err := config.Validate(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "%s is invalid:\n", path)
			for _, e := range unjoin(err) {
				fmt.Fprintf(os.Stderr, "  - %v\n", e)
			}
			return cli.Exit("", 1)
		}
		fmt.Printf("%s: ok (%d rules, tone %s)\n", path, len(cfg.Rules), cfg.Agent.Tone)
		return nil
	},
}

func unjoin(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

var initCmd = &cli.Command{
	Name:  "init",
	Usage: "write the example config with a fresh gateway token",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "force",
			Usage: "overwrite an existing config",
		},
	},
	Action: func(cctx *cli.Context) error {
		path := config.Path()
		if _, err := os.Stat(path); err == nil && !cctx.Bool("force") {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.CreateFromExample(path); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

var versionCmd = &cli.Command{
	Name:  "version",
	Usage: "print the version",
	Action: func(cctx *cli.Context) error {
		fmt.Printf("inboxagent v%s\n", version)
		return nil
	},
}
