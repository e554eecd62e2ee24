/*
Metronome testbed: runs the example game on top of the engine package.
*/
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/spaghettifunk/metronome/engine"
	"github.com/spaghettifunk/metronome/engine/config"
	"github.com/spaghettifunk/metronome/engine/core"
	"github.com/spaghettifunk/metronome/testbed"
)

func main() {
	app := cli.NewApp()
	app.Name = "metronome"
	app.Usage = "run the metronome testbed"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: "metronome.toml",
			Usage: "TOML configuration file",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error",
		},
		cli.BoolFlag{
			Name:  "headless",
			Usage: "run without a window and audio device",
		},
		cli.BoolFlag{
			Name:  "variable-step",
			Usage: "run one update per frame with the real elapsed time",
		},
		cli.Float64Flag{
			Name:  "target-fps",
			Usage: "updates per second in fixed time step mode",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		core.LogFatal("%s", err)
	}
}

func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	path := ctx.String("config")
	if _, err := os.Stat(path); err == nil || ctx.IsSet("config") {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if lvl := ctx.String("log-level"); lvl != "" {
		cfg.Application.LogLevel = lvl
	}
	if ctx.Bool("headless") {
		cfg.Application.Headless = true
	}
	if ctx.Bool("variable-step") {
		cfg.Timing.FixedTimeStep = false
	}
	if fps := ctx.Float64("target-fps"); fps != 0 {
		if fps < 0 {
			return nil, fmt.Errorf("%w: target-fps must be positive", core.ErrInvalidArgument)
		}
		cfg.Timing.TargetElapsedTime = config.Duration(time.Duration(float64(time.Second) / fps))
	}
	return cfg, cfg.Validate()
}

func run(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	tb := testbed.NewTestGame(cfg)
	e, err := engine.New(tb.Game)
	if err != nil {
		return err
	}
	defer e.Shutdown()

	if err := e.Initialize(); err != nil {
		return err
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer signal.Stop(sigCh)

	// stop the loop on the first signal, finalizers must leave the audio
	// engine alone from here on
	go func() {
		if _, ok := <-sigCh; ok {
			e.Lifetime().BeginExit()
			e.Exit()
		}
	}()

	return e.Run()
}
