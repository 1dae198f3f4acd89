package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"mongo-user-service/cmd/api/app"
	"mongo-user-service/cmd/api/server"
)

func main() {
	cliApp := &cli.App{
		Name:  "api",
		Usage: "HTTP user service backed by MongoDB",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "directory containing app.env",
				EnvVars: []string{"CONFIG_PATH"},
				Value:   ".",
			},
			&cli.StringFlag{
				Name:  "env",
				Usage: "application environment (development, production)",
			},
		},
		Action: run,
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "application exited with error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if env := c.String("env"); env != "" {
		if err := os.Setenv("APP_ENV", env); err != nil {
			return fmt.Errorf("failed to set APP_ENV: %w", err)
		}
	}

	a, err := app.New(c.Context, c.String("config"))
	if err != nil {
		return err
	}

	ctx, stop := server.WithSignal(context.Background(), a.Logger.Named("signal"))
	defer stop()

	if err := a.Run(ctx); err != nil {
		a.Logger.Error("application stopped with error", zap.Error(err))
		return err
	}
	return nil
}
