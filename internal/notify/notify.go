// Package notify pushes book-available notices over UDP to borrower
// clients that registered an address. Delivery is best-effort: one
// retry, then the client is dropped from the registry.
package notify

import (
	"encoding/json"
	"errors"
	"net"
	"sync"

	"github.com/rs/zerolog"
)

const (
	RegisterMessageType      = "register"
	BookAvailableMessageType = "book_available"
)

type RegisterMessage struct {
	Type  string `json:"type"`
	Email string `json:"email"`
}

type BookAvailableMessage struct {
	Type          string `json:"type"`
	BookID        string `json:"book_id"`
	BookTitle     string `json:"book_title,omitempty"`
	ReservationID string `json:"reservation_id"`
	Priority      int    `json:"priority"`
}

type Client struct {
	Email string
	Addr  *net.UDPAddr
}

type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

func (r *Registry) Register(email string, addr *net.UDPAddr) {
	if email == "" || addr == nil {
		return
	}
	r.mu.Lock()
	r.clients[email] = Client{Email: email, Addr: addr}
	r.mu.Unlock()
}

func (r *Registry) Remove(email string) {
	r.mu.Lock()
	delete(r.clients, email)
	r.mu.Unlock()
}

func (r *Registry) Lookup(email string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[email]
	return c, ok
}

type Server struct {
	addr     string
	registry *Registry
	log      zerolog.Logger
	conn     *net.UDPConn
}

func NewServer(addr string, registry *Registry, log zerolog.Logger) *Server {
	return &Server{addr: addr, registry: registry, log: log}
}

func (s *Server) Run() error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	s.conn = conn
	defer conn.Close()

	s.log.Info().Str("addr", s.addr).Msg("udp notify listening")

	buffer := make([]byte, 2048)
	for {
		n, addr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			return err
		}
		msg, err := parseRegisterMessage(buffer[:n])
		if err != nil {
			s.log.Warn().Stringer("remote", addr).Err(err).Msg("invalid udp message")
			continue
		}
		if msg.Type != RegisterMessageType {
			continue
		}
		s.registry.Register(msg.Email, addr)
		s.log.Info().Str("email", msg.Email).Stringer("remote", addr).Msg("registered notify client")
	}
}

// NotifyBookAvailable sends a pickup notice to the reservation holder,
// if they registered a client. Returns false when nobody is listening.
func (s *Server) NotifyBookAvailable(email string, msg BookAvailableMessage) bool {
	if s.conn == nil {
		s.log.Warn().Msg("udp notify server not running")
		return false
	}

	client, ok := s.registry.Lookup(email)
	if !ok {
		return false
	}

	msg.Type = BookAvailableMessageType
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal notify payload")
		return false
	}

	if err := s.sendOnce(client, payload); err == nil {
		return true
	}
	if err := s.sendOnce(client, payload); err != nil {
		s.log.Warn().Str("email", client.Email).Err(err).Msg("notify delivery failed, dropping client")
		s.registry.Remove(client.Email)
		return false
	}
	return true
}

func (s *Server) sendOnce(client Client, payload []byte) error {
	if client.Addr == nil {
		return errors.New("missing client address")
	}
	_, err := s.conn.WriteToUDP(payload, client.Addr)
	return err
}

func parseRegisterMessage(data []byte) (RegisterMessage, error) {
	var msg RegisterMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, err
	}
	if msg.Email == "" || msg.Type == "" {
		return msg, errors.New("missing required fields")
	}
	return msg, nil
}
