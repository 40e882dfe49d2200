package feed

import (
	"bufio"
	"net"

	"github.com/rs/zerolog"
)

// Server accepts raw TCP subscribers for the line-delimited event feed.
type Server struct {
	Addr string
	Hub  *Hub
	Log  zerolog.Logger
}

func NewServer(addr string, hub *Hub, log zerolog.Logger) *Server {
	return &Server{Addr: addr, Hub: hub, Log: log}
}

func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.Log.Info().Str("addr", s.Addr).Msg("tcp feed listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			continue
		}

		s.Hub.Add(conn)
		s.Hub.Welcome(conn)
		s.Log.Debug().Stringer("remote", conn.RemoteAddr()).Msg("feed client connected")

		go func(c net.Conn) {
			defer func() {
				s.Hub.Remove(c)
				s.Log.Debug().Stringer("remote", c.RemoteAddr()).Msg("feed client disconnected")
			}()

			// Subscribers only listen; consume anything they send.
			sc := bufio.NewScanner(c)
			for sc.Scan() {
			}
		}(conn)
	}
}
