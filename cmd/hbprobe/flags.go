package main

import (
	"fmt"
	"time"

	"github.com/nexodus-io/hbprobe/internal/probe"
	"github.com/nexodus-io/hbprobe/internal/report"
	"github.com/nexodus-io/hbprobe/internal/responder"
	"github.com/nexodus-io/hbprobe/internal/stun"
	"github.com/nexodus-io/hbprobe/internal/transcript"
	"github.com/urfave/cli/v3"
)

const (
	socketOptions    = "Socket Options"
	heartbeatOptions = "Heartbeat Options"
	outputOptions    = "Output Options"
)

func debugFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "debug",
		Value:   false,
		Usage:   "Enable debug logging",
		Sources: cli.EnvVars("HBPROBE_DEBUG"),
	}
}

// socketFlags configure the local endpoint and the receive loop.
func socketFlags(listenSeconds int64) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:     "local-port",
			Value:    probe.DefaultLocalPort,
			Usage:    "Local UDP `port` to bind, 0 picks an ephemeral port",
			Sources:  cli.EnvVars("HBPROBE_LOCAL_PORT"),
			Category: socketOptions,
		},
		&cli.StringFlag{
			Name:     "bind-address",
			Value:    probe.DefaultBindAddress,
			Usage:    "Local `address` to bind",
			Sources:  cli.EnvVars("HBPROBE_BIND_ADDRESS"),
			Category: socketOptions,
		},
		&cli.BoolFlag{
			Name:     "ephemeral-fallback",
			Value:    false,
			Usage:    "Bind an ephemeral port when the local port is unavailable",
			Sources:  cli.EnvVars("HBPROBE_EPHEMERAL_FALLBACK"),
			Category: socketOptions,
		},
		&cli.BoolFlag{
			Name:     "reuse-port",
			Value:    false,
			Usage:    "Share --local-port through SO_REUSEPORT when another socket already holds it",
			Sources:  cli.EnvVars("HBPROBE_REUSE_PORT"),
			Category: socketOptions,
		},
		&cli.IntFlag{
			Name:     "listen-seconds",
			Value:    listenSeconds,
			Usage:    "How long to listen for datagrams, 0 listens until interrupted",
			Sources:  cli.EnvVars("HBPROBE_LISTEN_SECONDS"),
			Category: socketOptions,
		},
		&cli.DurationFlag{
			Name:     "poll-interval",
			Value:    probe.DefaultPollInterval,
			Usage:    "Receive timeout of a single poll of the socket",
			Sources:  cli.EnvVars("HBPROBE_POLL_INTERVAL"),
			Category: socketOptions,
		},
		&cli.IntFlag{
			Name:     "buffer-size",
			Value:    probe.MaxDatagramSize,
			Usage:    "Receive buffer size in `bytes`, longer datagrams are truncated",
			Sources:  cli.EnvVars("HBPROBE_BUFFER_SIZE"),
			Category: socketOptions,
		},
		&cli.IntFlag{
			Name:     "ttl",
			Value:    0,
			Usage:    "IP TTL or hop limit of sent datagrams, 0 keeps the system default",
			Sources:  cli.EnvVars("HBPROBE_TTL"),
			Category: socketOptions,
		},
		&cli.BoolFlag{
			Name:     "strip-checksum",
			Value:    false,
			Usage:    "Expect a 4 byte checksum before the JSON of received datagrams",
			Sources:  cli.EnvVars("HBPROBE_STRIP_CHECKSUM"),
			Category: socketOptions,
		},
	}
}

func heartbeatFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "server-host",
			Value:    probe.DefaultServerHost,
			Usage:    "Heartbeat server `host`",
			Sources:  cli.EnvVars("HBPROBE_SERVER_HOST"),
			Category: heartbeatOptions,
		},
		&cli.IntFlag{
			Name:     "server-port",
			Value:    probe.DefaultServerPort,
			Usage:    "Heartbeat server UDP `port`",
			Sources:  cli.EnvVars("HBPROBE_SERVER_PORT"),
			Category: heartbeatOptions,
		},
		&cli.StringFlag{
			Name:     "user-id",
			Value:    probe.DefaultUserID,
			Usage:    "User id announced by the heartbeat, {port} and {uuid} are expanded",
			Sources:  cli.EnvVars("HBPROBE_USER_ID"),
			Category: heartbeatOptions,
		},
		&cli.IntFlag{
			Name:     "seq",
			Value:    0,
			Usage:    "Sequence number of the first heartbeat, 0 leaves it out",
			Sources:  cli.EnvVars("HBPROBE_SEQ"),
			Category: heartbeatOptions,
		},
		&cli.BoolFlag{
			Name:     "checksum",
			Value:    false,
			Usage:    "Prefix the heartbeat with its CRC32 checksum",
			Sources:  cli.EnvVars("HBPROBE_CHECKSUM"),
			Category: heartbeatOptions,
		},
		&cli.IntFlag{
			Name:     "attempts",
			Value:    probe.DefaultAttempts,
			Usage:    "Heartbeats to send while no reply arrives",
			Sources:  cli.EnvVars("HBPROBE_ATTEMPTS"),
			Category: heartbeatOptions,
		},
		&cli.BoolFlag{
			Name:     "no-ack-wait",
			Value:    false,
			Usage:    "Do not wait for an immediate reply after sending",
			Sources:  cli.EnvVars("HBPROBE_NO_ACK_WAIT"),
			Category: heartbeatOptions,
		},
		&cli.FloatFlag{
			Name:     "timeout",
			Value:    probe.DefaultAckTimeout.Seconds(),
			Usage:    "Reply wait in `seconds`",
			Sources:  cli.EnvVars("HBPROBE_TIMEOUT"),
			Category: heartbeatOptions,
		},
		&cli.StringFlag{
			Name:     "stun-server",
			Value:    "",
			Usage:    "STUN server `host:port` used to discover the reflexive address of the socket",
			Sources:  cli.EnvVars("HBPROBE_STUN_SERVER"),
			Category: heartbeatOptions,
		},
		&cli.BoolFlag{
			Name:     "stun",
			Value:    false,
			Usage:    "Discover the reflexive address using a public STUN server",
			Sources:  cli.EnvVars("HBPROBE_STUN"),
			Category: heartbeatOptions,
		},
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "output",
			Aliases:  []string{"o"},
			Value:    report.FormatText,
			Usage:    "Output format: text, json or yaml",
			Sources:  cli.EnvVars("HBPROBE_OUTPUT"),
			Category: outputOptions,
		},
		&cli.StringFlag{
			Name:     "filter",
			Value:    "",
			Usage:    "jq `expression` applied to JSON payloads, packets without results are not printed",
			Sources:  cli.EnvVars("HBPROBE_FILTER"),
			Category: outputOptions,
		},
		&cli.FloatFlag{
			Name:     "max-print-rate",
			Value:    0,
			Usage:    "Maximum packets printed per second, 0 prints all",
			Sources:  cli.EnvVars("HBPROBE_MAX_PRINT_RATE"),
			Category: outputOptions,
		},
		&cli.BoolFlag{
			Name:     "summary",
			Value:    false,
			Usage:    "Print a per sender summary when the socket closes",
			Sources:  cli.EnvVars("HBPROBE_SUMMARY"),
			Category: outputOptions,
		},
		&cli.StringFlag{
			Name:     "record",
			Value:    "",
			Usage:    "Write every received packet to this JSON `file`",
			Sources:  cli.EnvVars("HBPROBE_RECORD"),
			Category: outputOptions,
		},
		&cli.BoolFlag{
			Name:     "no-color",
			Value:    false,
			Usage:    "Disable colored output",
			Sources:  cli.EnvVars("HBPROBE_NO_COLOR"),
			Category: outputOptions,
		},
	}
}

func respondFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "listen",
			Value:   fmt.Sprintf("0.0.0.0:%d", probe.DefaultServerPort),
			Usage:   "The address and port to answer datagrams on",
			Sources: cli.EnvVars("HBPROBE_RESPOND_LISTEN"),
		},
		&cli.StringFlag{
			Name:    "reply",
			Value:   responder.DefaultReply,
			Usage:   "Reply payload, {echo} sends each datagram back",
			Sources: cli.EnvVars("HBPROBE_RESPOND_REPLY"),
		},
		debugFlag(),
	}
}

// configFromFlags maps the command line onto a probe configuration. Send
// flags are only read when withHeartbeat is set.
func configFromFlags(command *cli.Command, withHeartbeat bool) probe.Config {
	cfg := probe.DefaultConfig()
	cfg.BindAddress = command.String("bind-address")
	cfg.LocalPort = int(command.Int("local-port"))
	cfg.EphemeralFallback = command.Bool("ephemeral-fallback")
	cfg.ReusePort = command.Bool("reuse-port")
	cfg.ListenDuration = time.Duration(command.Int("listen-seconds")) * time.Second
	cfg.PollInterval = command.Duration("poll-interval")
	cfg.BufferSize = int(command.Int("buffer-size"))
	cfg.TTL = int(command.Int("ttl"))
	cfg.StripChecksum = command.Bool("strip-checksum")
	if !withHeartbeat {
		return cfg
	}

	cfg.ServerHost = command.String("server-host")
	cfg.ServerPort = int(command.Int("server-port"))
	cfg.UserID = command.String("user-id")
	cfg.Seq = command.Int("seq")
	cfg.Checksum = command.Bool("checksum")
	cfg.Attempts = int(command.Int("attempts"))
	cfg.WaitForAck = !command.Bool("no-ack-wait")
	cfg.AckTimeout = time.Duration(command.Float("timeout") * float64(time.Second))
	cfg.StunServer = command.String("stun-server")
	if cfg.StunServer == "" && command.Bool("stun") {
		cfg.StunServer = stun.NextServer()
	}
	return cfg
}

// reportOptions maps the output flags onto printer options. interactive
// tells whether the diagnostic stream is a terminal.
func reportOptions(command *cli.Command, interactive bool) report.Options {
	opts := report.Options{
		Format:       command.String("output"),
		Filter:       command.String("filter"),
		MaxPrintRate: command.Float("max-print-rate"),
		Summary:      command.Bool("summary"),
		NoColor:      command.Bool("no-color"),
	}
	opts.Spinner = interactive && opts.Format == report.FormatText && !opts.NoColor
	if file := command.String("record"); file != "" {
		opts.Transcript = transcript.New(file)
	}
	return opts
}
