package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Black-And-White-Club/score-ledger/app"
	authdomain "github.com/Black-And-White-Club/score-ledger/app/modules/auth/domain"
	authjwt "github.com/Black-And-White-Club/score-ledger/app/modules/auth/infrastructure/jwt"
	ledgerservice "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/application"
	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
	ledgerstorage "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/infrastructure/storage"
	"github.com/Black-And-White-Club/score-ledger/app/observability"
	"github.com/Black-And-White-Club/score-ledger/config"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func main() {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Value:   "config.yaml",
		Usage:   "path to the configuration file",
		EnvVars: []string{"CONFIG_FILE"},
	}

	cliApp := &cli.App{
		Name:    "score-ledger",
		Usage:   "ranked score ledger for the puzzle leaderboard",
		Version: config.Version,
		Flags:   []cli.Flag{configFlag},
		Commands: []*cli.Command{
			serveCommand(),
			tokenCommand(),
			exportCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the ledger API, event handlers and live feed",
		Action: func(c *cli.Context) error {
			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			obs, err := observability.Init(ctx, config.ToObsConfig(cfg))
			if err != nil {
				return fmt.Errorf("failed to initialize observability: %w", err)
			}
			logger := obs.Logger
			logger.InfoContext(ctx, "Starting score ledger",
				slog.String("version", config.Version),
				slog.String("store", cfg.Store.Backend),
			)

			a, err := app.New(ctx, cfg, obs)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			runErr := a.Run(ctx)

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := a.Close(shutdownCtx); err != nil {
				logger.Error("Error during shutdown", slog.Any("error", err))
			}
			logger.Info("Score ledger stopped")
			return runErr
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "mint a bearer token for the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Required: true, Usage: "participant id or operator name"},
			&cli.StringFlag{Name: "role", Value: string(authdomain.RolePlayer), Usage: "viewer, player or admin"},
			&cli.DurationFlag{Name: "ttl", Usage: "token lifetime (defaults to jwt.default_ttl)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			role := authdomain.Role(c.String("role"))
			if !role.IsValid() {
				return fmt.Errorf("invalid role %q", role)
			}
			ttl := c.Duration("ttl")
			if ttl <= 0 {
				ttl = cfg.JWT.DefaultTTL
			}

			provider := authjwt.NewProvider(cfg.JWT.Secret, cfg.JWT.Issuer)
			token, err := provider.GenerateToken(&authdomain.Claims{
				Subject: c.String("subject"),
				Role:    role,
			}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, token)
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "write the top of the leaderboard to an xlsx workbook",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "n", Value: ledgerdomain.MaxLimit, Usage: "number of entries"},
			&cli.StringFlag{Name: "window", Value: string(ledgerdomain.WindowAllTime), Usage: "all-time, weekly or daily"},
			&cli.StringFlag{Name: "out", Usage: "write the workbook to this path"},
			&cli.BoolFlag{Name: "upload", Usage: "upload the workbook to the export bucket"},
		},
		Action: func(c *cli.Context) error {
			ctx := c.Context
			if c.String("out") == "" && !c.Bool("upload") {
				return fmt.Errorf("nothing to do: pass --out and/or --upload")
			}
			window, err := ledgerdomain.ParseWindow(c.String("window"))
			if err != nil {
				return err
			}

			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			obs := observability.NewNoop(observability.NewLogger(config.ToObsConfig(cfg)))
			logger := obs.Logger

			bus, err := app.NewBus(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer bus.Close()

			store, err := app.OpenStore(ctx, cfg, bus)
			if err != nil {
				return err
			}
			defer store.Close()

			service := ledgerservice.NewLedgerService(store, ledgerservice.NopEmitter{}, logger, obs.Metrics, obs.Tracer)
			if err := service.Load(ctx); err != nil {
				return fmt.Errorf("failed to load ledger: %w", err)
			}

			now := time.Now().UTC()
			data, err := ledgerservice.ExportTopXLSX(service.TopWindow(ctx, c.Int("n"), window), now)
			if err != nil {
				return err
			}

			if out := c.String("out"); out != "" {
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", out, err)
				}
				logger.InfoContext(ctx, "Export written", slog.String("path", out), slog.Int("bytes", len(data)))
			}

			if c.Bool("upload") {
				uploader, err := ledgerstorage.NewS3Uploader(ctx, ledgerstorage.S3Config{
					Endpoint:        cfg.Export.Endpoint,
					Region:          cfg.Export.Region,
					Bucket:          cfg.Export.Bucket,
					AccessKeyID:     cfg.Export.AccessKeyID,
					SecretAccessKey: cfg.Export.SecretAccessKey,
					PublicBaseURL:   cfg.Export.PublicBaseURL,
					UsePathStyle:    cfg.Export.UsePathStyle,
				})
				if err != nil {
					return err
				}
				res, err := uploader.Upload(ctx, ledgerstorage.ExportKey(cfg.Export.Prefix, now), xlsxContentType, bytes.NewReader(data))
				if err != nil {
					return err
				}
				if res.Location != "" {
					fmt.Fprintln(c.App.Writer, res.Location)
				} else {
					fmt.Fprintln(c.App.Writer, res.Key)
				}
			}
			return nil
		},
	}
}
