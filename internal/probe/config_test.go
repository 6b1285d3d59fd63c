package probe

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 60000, cfg.LocalPort)
	assert.Equal(t, 9876, cfg.ServerPort)
	assert.Equal(t, "demo-user-1", cfg.UserID)
	assert.Equal(t, 65536, cfg.BufferSize)
	assert.True(t, cfg.WaitForAck)
	assert.False(t, cfg.EphemeralFallback)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"local port", func(c *Config) { c.LocalPort = 70000 }},
		{"server host", func(c *Config) { c.ServerHost = "" }},
		{"server port zero", func(c *Config) { c.ServerPort = 0 }},
		{"user id", func(c *Config) { c.UserID = "" }},
		{"seq", func(c *Config) { c.Seq = -1 }},
		{"attempts", func(c *Config) { c.Attempts = 0 }},
		{"ack timeout", func(c *Config) { c.AckTimeout = 0 }},
		{"listen duration", func(c *Config) { c.ListenDuration = -time.Second }},
		{"poll interval", func(c *Config) { c.PollInterval = 0 }},
		{"buffer size", func(c *Config) { c.BufferSize = MaxDatagramSize + 1 }},
		{"ttl", func(c *Config) { c.TTL = 256 }},
		{"stun timeout", func(c *Config) { c.StunServer = "127.0.0.1:3478"; c.StunTimeout = 0 }},
		{"v6 server from v4 bind", func(c *Config) { c.ServerHost = "::1" }},
		{"v4 server from v6 bind", func(c *Config) { c.BindAddress = "::1" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.ErrorIs(t, err, ErrInvalidConfig)
			require.Equal(t, ExitFailure, ExitCode(err))
		})
	}
}

func TestAckTimeoutIgnoredWithoutAckWait(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WaitForAck = false
	cfg.AckTimeout = 0
	require.NoError(t, cfg.Validate())
}

func TestDualStackBindAcceptsEitherFamily(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BindAddress = "::"
	require.NoError(t, cfg.Validate())
	cfg.ServerHost = "::1"
	require.NoError(t, cfg.Validate())
}

func TestExitCode(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(ExitOK, ExitCode(nil))
	assert.Equal(ExitBindFailure, ExitCode(&BindError{Address: "0.0.0.0:60000", Err: errors.New("in use")}))
	assert.Equal(ExitSendFailure, ExitCode(fmt.Errorf("run: %w", &SendError{Server: "127.0.0.1:9876", Attempt: 1, Err: errors.New("refused")})))
	assert.Equal(ExitFailure, ExitCode(errors.New("receive failed")))
}

func TestStateTransitions(t *testing.T) {
	assert := assert.New(t)
	assert.NoError(transition(StateUnbound, StateBound))
	assert.NoError(transition(StateBound, StateListening))
	assert.NoError(transition(StateHeartbeatSent, StateClosed))
	assert.Error(transition(StateAckWait, StateAckWait))
	assert.Error(transition(StateListening, StateBound))
	assert.Equal("HEARTBEAT_SENT", StateHeartbeatSent.String())
	assert.Equal("State(42)", State(42).String())
}
