package main

import (
	"context"
	"testing"
	"time"

	"github.com/nexodus-io/hbprobe/internal/probe"
	"github.com/nexodus-io/hbprobe/internal/report"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

// capture runs args through the command tree with the probe actions replaced.
func capture(t *testing.T, args ...string) (cfg probe.Config, opts report.Options, withHeartbeat bool) {
	t.Helper()
	app := newApp()
	app.Action = func(ctx context.Context, command *cli.Command) error {
		cfg, opts, withHeartbeat = configFromFlags(command, true), reportOptions(command, false), true
		return nil
	}
	for _, sub := range app.Commands {
		if sub.Name == "listen" {
			sub.Action = func(ctx context.Context, command *cli.Command) error {
				cfg, opts = configFromFlags(command, false), reportOptions(command, false)
				return nil
			}
		}
	}
	require.NoError(t, app.Run(context.Background(), append([]string{"hbprobe"}, args...)))
	return cfg, opts, withHeartbeat
}

func TestDefaults(t *testing.T) {
	require := require.New(t)
	cfg, opts, withHeartbeat := capture(t)

	require.True(withHeartbeat)
	require.Equal(probe.DefaultConfig(), cfg)
	require.Equal(report.FormatText, opts.Format)
	require.Nil(opts.Transcript)
	require.False(opts.Spinner)
}

func TestSendFlags(t *testing.T) {
	require := require.New(t)
	cfg, opts, _ := capture(t,
		"--local-port", "0",
		"--server-host", "10.0.0.5",
		"--server-port", "9999",
		"--user-id", "client1-{port}",
		"--seq", "1",
		"--checksum",
		"--attempts", "3",
		"--timeout", "1.5",
		"--listen-seconds", "0",
		"--ephemeral-fallback",
		"--output", "json",
		"--filter", ".type",
		"--record", "/tmp/hbprobe/transcript.json",
	)

	require.Equal(0, cfg.LocalPort)
	require.Equal("10.0.0.5", cfg.ServerHost)
	require.Equal(9999, cfg.ServerPort)
	require.Equal("client1-{port}", cfg.UserID)
	require.Equal(int64(1), cfg.Seq)
	require.True(cfg.Checksum)
	require.Equal(3, cfg.Attempts)
	require.Equal(1500*time.Millisecond, cfg.AckTimeout)
	require.Equal(time.Duration(0), cfg.ListenDuration)
	require.True(cfg.EphemeralFallback)
	require.True(cfg.WaitForAck)
	require.NoError(cfg.Validate())

	require.Equal(report.FormatJSON, opts.Format)
	require.Equal(".type", opts.Filter)
	require.NotNil(opts.Transcript)
	require.Equal("/tmp/hbprobe/transcript.json", opts.Transcript.File)
}

func TestNoAckWaitFlag(t *testing.T) {
	cfg, _, _ := capture(t, "--no-ack-wait")
	require.False(t, cfg.WaitForAck)
}

func TestEnvironmentSources(t *testing.T) {
	t.Setenv("HBPROBE_SERVER_PORT", "7000")
	t.Setenv("HBPROBE_STUN_SERVER", "127.0.0.1:3478")
	cfg, _, _ := capture(t)
	require.Equal(t, 7000, cfg.ServerPort)
	require.Equal(t, "127.0.0.1:3478", cfg.StunServer)
}

func TestListenCommand(t *testing.T) {
	require := require.New(t)
	cfg, opts, withHeartbeat := capture(t, "listen", "--local-port", "60001", "--strip-checksum", "--summary")

	require.False(withHeartbeat)
	require.Equal(60001, cfg.LocalPort)
	require.True(cfg.StripChecksum)
	require.Equal(time.Duration(0), cfg.ListenDuration)
	require.True(opts.Summary)
}
