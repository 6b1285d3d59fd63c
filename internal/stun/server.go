package stun

import (
	"errors"
	"net"
	"sync"

	"github.com/nexodus-io/hbprobe/internal/util"
	"github.com/pion/stun"
	"go.uber.org/zap"
)

var software = stun.NewSoftware("hbprobe")

// Answer builds the binding success response for a STUN binding request
// received from addr. ok is false when request is not a STUN binding
// request.
func Answer(request []byte, addr net.Addr) (response []byte, ok bool, err error) {
	if !stun.IsMessage(request) {
		return nil, false, nil
	}
	udpAddr, isUDP := addr.(*net.UDPAddr)
	if !isUDP {
		return nil, false, nil
	}

	req := &stun.Message{Raw: append([]byte(nil), request...)}
	if err := req.Decode(); err != nil {
		return nil, false, err
	}
	if req.Type != stun.BindingRequest {
		return nil, false, nil
	}

	res := &stun.Message{}
	err = res.Build(req,
		stun.BindingSuccess,
		software,
		&stun.XORMappedAddress{IP: udpAddr.IP, Port: udpAddr.Port},
		stun.Fingerprint,
	)
	if err != nil {
		return nil, false, err
	}
	return res.Raw, true, nil
}

// Server answers STUN binding requests.
type Server struct {
	Log *zap.Logger
}

func (s *Server) Serve(conn net.PacketConn) error {
	buf := make([]byte, 1500)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		response, ok, err := Answer(buf[:n], addr)
		if err != nil {
			s.Log.Debug("Failed to answer stun request", zap.Error(err))
			continue
		}
		if !ok {
			s.Log.Debug("Not a STUN binding request")
			continue
		}
		if _, err := conn.WriteTo(response, addr); err != nil {
			s.Log.Info("Failed conn.WriteTo", zap.Error(err))
			continue
		}
		s.Log.Debug("Stun server processed request", zap.String("endpoint", addr.String()))
	}
}

// ClosableServer is a Server running on its own socket.
type ClosableServer struct {
	Server
	Port int
	conn net.PacketConn
	wg   sync.WaitGroup
}

// ListenAndStart binds address and serves in the background until
// Shutdown.
func ListenAndStart(address string, log *zap.Logger) (*ClosableServer, error) {
	conn, err := net.ListenPacket("udp", address)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &ClosableServer{
		Server: Server{Log: log},
		Port:   util.PortOf(conn.LocalAddr()),
		conn:   conn,
	}
	s.Log.Info("Stun server listening", zap.Int("port", s.Port))

	util.GoWithWaitGroup(&s.wg, func() {
		if err := s.Serve(conn); err != nil {
			s.Log.Info("Failed Serve", zap.Error(err))
		}
	})
	return s, nil
}

func (s *ClosableServer) Shutdown() error {
	if err := s.conn.Close(); err != nil {
		return err
	}
	s.wg.Wait()
	return nil
}
