package responder

import (
	"net"
	"testing"
	"time"

	"github.com/nexodus-io/hbprobe/internal/stun"
	"github.com/nexodus-io/hbprobe/internal/util"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func exchange(t *testing.T, r *Responder, payload []byte) []byte {
	t.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer util.IgnoreError(conn.Close)

	_, err = conn.WriteTo(payload, r.Addr())
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 1500)
	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)
	return buf[:n]
}

func TestResponderDefaultReply(t *testing.T) {
	require := require.New(t)
	r, err := ListenAndStart("127.0.0.1:0", "", zaptest.NewLogger(t).Sugar())
	require.NoError(err)
	defer util.IgnoreError(r.Shutdown)

	require.NotZero(r.Port)
	require.Equal("ACK", string(exchange(t, r, []byte(`{"type":"HEARTBEAT"}`))))
	require.Equal(int64(1), r.Received())
}

func TestResponderEcho(t *testing.T) {
	require := require.New(t)
	r, err := ListenAndStart("127.0.0.1:0", EchoReply, zaptest.NewLogger(t).Sugar())
	require.NoError(err)
	defer util.IgnoreError(r.Shutdown)

	require.Equal("hello", string(exchange(t, r, []byte("hello"))))
}

func TestResponderAnswersStun(t *testing.T) {
	require := require.New(t)
	r, err := ListenAndStart("127.0.0.1:0", "pong", zaptest.NewLogger(t).Sugar())
	require.NoError(err)
	defer util.IgnoreError(r.Shutdown)

	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(err)
	defer util.IgnoreError(conn.Close)

	binding, err := stun.Discover(conn, r.Addr().String(), 2*time.Second, nil)
	require.NoError(err)
	require.Equal(util.PortOf(conn.LocalAddr()), int(binding.Port()))
}

func TestResponderShutdown(t *testing.T) {
	r, err := ListenAndStart("127.0.0.1:0", "", nil)
	require.NoError(t, err)
	require.NoError(t, r.Shutdown())
	require.Error(t, r.Shutdown())
}
