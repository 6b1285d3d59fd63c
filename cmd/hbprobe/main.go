package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/nexodus-io/hbprobe/internal/probe"
	"github.com/nexodus-io/hbprobe/internal/report"
	"github.com/nexodus-io/hbprobe/internal/responder"
	"github.com/nexodus-io/hbprobe/internal/util"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const hbprobeLogEnv = "HBPROBE_LOGLEVEL"

// This variable is set using ldflags at build time.
var Version = "dev"

func main() {
	// Overwrite usage to capitalize "Show"
	cli.HelpFlag.(*cli.BoolFlag).Usage = "Show help"
	app := newApp()
	err := app.Run(context.Background(), os.Args)
	os.Exit(probe.ExitCode(err))
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "hbprobe",
		Usage: "Send a UDP heartbeat and print every datagram received on the same socket.",
		Flags: concat(socketFlags(int64(probe.DefaultListenDuration.Seconds())), heartbeatFlags(), outputFlags(), []cli.Flag{debugFlag()}),
		Action: func(ctx context.Context, command *cli.Command) error {
			return runProbe(ctx, command, true)
		},
		Commands: []*cli.Command{
			{
				Name:  "listen",
				Usage: "Bind the socket and print received datagrams without sending a heartbeat",
				Flags: concat(socketFlags(0), outputFlags(), []cli.Flag{debugFlag()}),
				Action: func(ctx context.Context, command *cli.Command) error {
					return runProbe(ctx, command, false)
				},
			},
			{
				Name:   "respond",
				Usage:  "Answer every datagram, a stand-in for the heartbeat server",
				Flags:  respondFlags(),
				Action: runResponder,
			},
			{
				Name:  "version",
				Usage: "Get the version of hbprobe",
				Action: func(ctx context.Context, command *cli.Command) error {
					fmt.Printf("version: %s\n", Version)
					return nil
				},
			},
		},
	}
}

func concat(sets ...[]cli.Flag) []cli.Flag {
	var flags []cli.Flag
	for _, set := range sets {
		flags = append(flags, set...)
	}
	return flags
}

func getLogger(command *cli.Command) *zap.Logger {
	logCfg := zap.NewProductionConfig()
	logCfg.DisableStacktrace = true
	if command.Bool("debug") || os.Getenv(hbprobeLogEnv) != "" {
		logCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := logCfg.Build()
	if err != nil {
		log.Fatal(err)
	}
	return logger
}

func runProbe(ctx context.Context, command *cli.Command, withHeartbeat bool) error {
	logger := getLogger(command)
	defer util.IgnoreError(logger.Sync)

	opts := reportOptions(command, report.Interactive(os.Stderr))
	if opts.NoColor {
		color.NoColor = true
	}
	printer, err := report.New(os.Stdout, os.Stderr, opts)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}

	cfg := configFromFlags(command, withHeartbeat)
	p, err := probe.New(cfg, logger.Sugar(), printer)
	if err != nil {
		printer.Fatal(err)
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT)
	defer stop()

	if withHeartbeat {
		err = p.Run(ctx)
	} else {
		err = p.RunListener(ctx)
	}
	if err != nil {
		printer.Fatal(err)
	}
	return err
}

func runResponder(ctx context.Context, command *cli.Command) error {
	logger := getLogger(command)
	defer util.IgnoreError(logger.Sync)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT)
	defer stop()

	r, err := responder.ListenAndStart(command.String("listen"), command.String("reply"), logger.Sugar())
	if err != nil {
		logger.Error("Failed to start responder", zap.Error(err))
		return &probe.BindError{Address: command.String("listen"), Err: err}
	}
	<-ctx.Done()
	logger.Info("Shutting down responder", zap.Int64("received", r.Received()))
	return r.Shutdown()
}
