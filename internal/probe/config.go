package probe

import (
	"errors"
	"fmt"
	"time"

	"github.com/nexodus-io/hbprobe/internal/util"
)

const (
	DefaultBindAddress    = "0.0.0.0"
	DefaultLocalPort      = 60000
	DefaultServerHost     = "127.0.0.1"
	DefaultServerPort     = 9876
	DefaultUserID         = "demo-user-1"
	DefaultAttempts       = 1
	DefaultAckTimeout     = 5 * time.Second
	DefaultListenDuration = 30 * time.Second
	DefaultPollInterval   = time.Second
	DefaultStunTimeout    = 3 * time.Second

	// MaxDatagramSize is large enough for any UDP payload.
	MaxDatagramSize = 65536
)

// ErrInvalidConfig is wrapped by every Config.Validate error.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds every knob of a probe run.
type Config struct {
	BindAddress string
	LocalPort   int
	// EphemeralFallback rebinds to an OS assigned port when LocalPort
	// cannot be bound. When unset a bind failure is fatal.
	EphemeralFallback bool
	ReusePort         bool

	ServerHost string
	ServerPort int

	// UserID may contain the {port} and {uuid} placeholders.
	UserID string
	// Seq is the sequence number of the first heartbeat, 0 omits the field.
	Seq           int64
	Checksum      bool
	StripChecksum bool

	Attempts   int
	WaitForAck bool
	AckTimeout time.Duration

	// ListenDuration of 0 listens until the context is cancelled.
	ListenDuration time.Duration
	PollInterval   time.Duration
	BufferSize     int
	TTL            int

	StunServer  string
	StunTimeout time.Duration
}

// DefaultConfig returns the configuration used when no flag is given.
func DefaultConfig() Config {
	return Config{
		BindAddress:    DefaultBindAddress,
		LocalPort:      DefaultLocalPort,
		ServerHost:     DefaultServerHost,
		ServerPort:     DefaultServerPort,
		UserID:         DefaultUserID,
		Attempts:       DefaultAttempts,
		WaitForAck:     true,
		AckTimeout:     DefaultAckTimeout,
		ListenDuration: DefaultListenDuration,
		PollInterval:   DefaultPollInterval,
		BufferSize:     MaxDatagramSize,
		StunTimeout:    DefaultStunTimeout,
	}
}

func (c Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	switch {
	case c.LocalPort < 0 || c.LocalPort > 65535:
		return invalid("local port %d out of range", c.LocalPort)
	case c.ServerHost == "":
		return invalid("server host is empty")
	case c.ServerPort < 1 || c.ServerPort > 65535:
		return invalid("server port %d out of range", c.ServerPort)
	case c.UserID == "":
		return invalid("user id is empty")
	case c.Seq < 0:
		return invalid("seq %d is negative", c.Seq)
	case c.Attempts < 1:
		return invalid("attempts must be at least 1, got %d", c.Attempts)
	case c.WaitForAck && c.AckTimeout <= 0:
		return invalid("timeout must be positive, got %s", c.AckTimeout)
	case c.ListenDuration < 0:
		return invalid("listen duration %s is negative", c.ListenDuration)
	case c.PollInterval <= 0:
		return invalid("poll interval must be positive, got %s", c.PollInterval)
	case c.BufferSize < 1 || c.BufferSize > MaxDatagramSize:
		return invalid("buffer size %d must be between 1 and %d", c.BufferSize, MaxDatagramSize)
	case c.TTL < 0 || c.TTL > 255:
		return invalid("ttl %d must be between 0 and 255", c.TTL)
	case c.StunServer != "" && c.StunTimeout <= 0:
		return invalid("stun timeout must be positive, got %s", c.StunTimeout)
	case util.IsIPv4Address(c.BindAddress) && util.IsIPv6Address(c.ServerHost):
		return invalid("IPv6 server host %s cannot be reached from IPv4 bind address %s", c.ServerHost, c.BindAddress)
	case util.UDPNetwork(c.BindAddress) == "udp6" && util.IsIPv4Address(c.ServerHost):
		return invalid("IPv4 server host %s cannot be reached from IPv6 bind address %s, bind to :: for dual stack", c.ServerHost, c.BindAddress)
	}
	return nil
}
