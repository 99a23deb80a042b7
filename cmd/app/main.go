package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/pkg/browser"
	"github.com/urfave/cli/v3"

	"github.com/starford/specmon/internal"
	pkgconfig "github.com/starford/specmon/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found && cmd.IsSet("config") {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	if cmd.IsSet("dir") {
		cfg.Store.Dir = cmd.String("dir")
	}
	if cmd.IsSet("layout") {
		cfg.Store.Layout = cmd.String("layout")
	}
	if cmd.IsSet("mode") {
		cfg.Render.Mode = cmd.String("mode")
	}
	if cmd.IsSet("period") {
		cfg.Render.Period = cmd.Duration("period")
	}
	if cmd.IsSet("port") {
		cfg.App.HTTP.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("params-file") {
		cfg.Params.File = cmd.String("params-file")
	}
	if cmd.IsSet("produce") {
		cfg.Producer.Enabled = cmd.Bool("produce")
	}
	if cmd.IsSet("out") {
		cfg.Snapshots.Dir = cmd.String("out")
	}
	if cmd.IsSet("width") {
		cfg.Producer.Width = int(cmd.Int("width"))
	}
	if cmd.IsSet("height") {
		cfg.Producer.Height = int(cmd.Int("height"))
	}
	if cmd.IsSet("rate") {
		cfg.Producer.Period = cmd.Duration("rate")
	}
	if cmd.IsSet("torn-delay") {
		cfg.Producer.TornDelay = cmd.Duration("torn-delay")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runMode(mode string) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithMode(mode),
			internal.WithVersion(version),
		}

		if err := internal.Run(ctx, opts...); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	}
}

func produce(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.Produce(ctx, internal.WithConfig(cfg))
}

func snapshot(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	snap, err := internal.Snapshot(ctx, internal.WithConfig(cfg))
	if err != nil {
		return err
	}
	fmt.Println(snap.Path)
	if cmd.Bool("open") {
		if err := browser.OpenFile(snap.Path); err != nil {
			return fmt.Errorf("open snapshot: %w", err)
		}
	}
	return nil
}

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "dir",
			Aliases: []string{"d"},
			Usage:   "Frame exchange directory",
			Sources: cli.EnvVars("SPECMON_DIR"),
		},
		&cli.StringFlag{
			Name:  "layout",
			Usage: "Artifact layout: pair or envelope",
		},
	}
}

func renderFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "mode",
			Aliases: []string{"m"},
			Usage:   "Render mode: heatmap or trace",
			Sources: cli.EnvVars("SPECMON_MODE"),
		},
		&cli.DurationFlag{
			Name:  "period",
			Usage: "Render tick period",
		},
		&cli.StringFlag{
			Name:  "params-file",
			Usage: "YAML file with gain/offset, reloaded on change",
		},
	}
}

func flags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func main() {
	serveFlags := flags(storeFlags(), renderFlags(), []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "HTTP port",
		},
		&cli.BoolFlag{
			Name:  "produce",
			Usage: "Run the synthetic producer in-process",
		},
	})

	cmd := &cli.Command{
		Name:    "specmon",
		Usage:   "Live heatmap and trace monitor for frames written by an external producer",
		Version: version,
		Action:  runMode(internal.ModeServe),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API, SSE events and PNG output (default)",
				Action: runMode(internal.ModeServe),
				Flags:  serveFlags,
			},
			{
				Name:   "tui",
				Usage:  "Show the monitor in the terminal",
				Action: runMode(internal.ModeTUI),
				Flags:  flags(storeFlags(), renderFlags()),
			},
			{
				Name:   "mcp",
				Usage:  "Serve render state and controls over MCP stdio",
				Action: runMode(internal.ModeMCP),
				Flags:  flags(storeFlags(), renderFlags()),
			},
			{
				Name:   "produce",
				Usage:  "Write synthetic frames to the exchange directory",
				Action: produce,
				Flags: flags(storeFlags(), []cli.Flag{
					&cli.IntFlag{Name: "width", Usage: "Frame width"},
					&cli.IntFlag{Name: "height", Usage: "Frame height"},
					&cli.DurationFlag{Name: "rate", Usage: "Interval between frames"},
					&cli.DurationFlag{Name: "torn-delay", Usage: "Pause between descriptor and payload writes"},
				}),
			},
			{
				Name:   "snapshot",
				Usage:  "Render the current frame to a PNG file",
				Action: snapshot,
				Flags: flags(storeFlags(), renderFlags(), []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Snapshot directory"},
					&cli.BoolFlag{Name: "open", Usage: "Open the PNG in the system viewer"},
				}),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
