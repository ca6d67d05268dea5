package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := cli.NewCLI(cli.Options{
		Output: os.Stdout,
		Setup:  setup,
	})
	if err := app.Run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, core.ErrAuthExpired) {
			fmt.Fprintln(os.Stderr, "The API rejected the credential; set a fresh FINTRACK_API_TOKEN and retry.")
		}
		os.Exit(1)
	}
}

func setup(ctx context.Context) (*cli.Env, error) {
	cli.LoadEnvFile()
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return nil, err
	}
	logger := cli.SetupLogger(cfg, applog.ComponentCLI, os.Stderr)

	var warnOnce sync.Once
	res, err := cli.InitBackend(ctx, logger, cfg, func() {
		warnOnce.Do(func() {
			logger.Warn("API credential expired", applog.FieldErrorKind, core.ErrAuthExpired.Error())
		})
	})
	if err != nil {
		return nil, err
	}

	env := &cli.Env{
		Totals:      res.Totals,
		Obligations: res.Obligations,
		Close:       res.Close,
	}
	if cfg.AMQPURL != "" {
		env.OpenAlerts = func(context.Context) (cli.AlertConsumer, error) {
			return amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		}
	}
	return env, nil
}
