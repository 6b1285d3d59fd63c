package stun_test

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/nexodus-io/hbprobe/internal/stun"
	"github.com/nexodus-io/hbprobe/internal/util"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDiscoverAgainstLocalServer(t *testing.T) {
	require := require.New(t)
	log := zaptest.NewLogger(t)

	server, err := stun.ListenAndStart("127.0.0.1:0", log)
	require.NoError(err)
	defer util.IgnoreError(server.Shutdown)

	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(err)
	defer util.IgnoreError(conn.Close)

	binding, err := stun.Discover(conn, fmt.Sprintf("127.0.0.1:%d", server.Port), 2*time.Second, nil)
	require.NoError(err)
	require.Equal("127.0.0.1", binding.Addr().String())
	require.Equal(util.PortOf(conn.LocalAddr()), int(binding.Port()))
}

func TestDiscoverHandsOverOtherDatagrams(t *testing.T) {
	require := require.New(t)

	// a peer that sends a notification before answering the binding request
	peer, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(err)
	defer util.IgnoreError(peer.Close)
	go func() {
		buf := make([]byte, 1500)
		n, addr, err := peer.ReadFrom(buf)
		if err != nil {
			return
		}
		_, _ = peer.WriteTo([]byte(`{"type":"NOTIFY"}`), addr)
		if response, ok, err := stun.Answer(buf[:n], addr); err == nil && ok {
			_, _ = peer.WriteTo(response, addr)
		}
	}()

	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(err)
	defer util.IgnoreError(conn.Close)

	var others [][]byte
	binding, err := stun.Discover(conn, peer.LocalAddr().String(), 2*time.Second, func(data []byte, from net.Addr) {
		others = append(others, data)
	})
	require.NoError(err)
	require.Equal(util.PortOf(conn.LocalAddr()), int(binding.Port()))
	require.Len(others, 1)
	require.JSONEq(`{"type":"NOTIFY"}`, string(others[0]))
}

func TestDiscoverTimeout(t *testing.T) {
	require := require.New(t)

	silent, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(err)
	defer util.IgnoreError(silent.Close)

	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(err)
	defer util.IgnoreError(conn.Close)

	_, err = stun.Discover(conn, silent.LocalAddr().String(), 200*time.Millisecond, nil)
	require.Error(err)
}

func TestAnswerIgnoresNonStun(t *testing.T) {
	_, ok, err := stun.Answer([]byte("ACK"), &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1})
	require.NoError(t, err)
	require.False(t, ok)
}
