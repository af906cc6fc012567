// Package server exposes the prompt parser over HTTP and a live-parse WebSocket.
package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teranos/promptc/am"
	"github.com/teranos/promptc/conditioning"
	"github.com/teranos/promptc/errors"
	"github.com/teranos/promptc/logger"
	"github.com/teranos/promptc/prompt"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Server parses prompts for HTTP and WebSocket clients. The parser, limiter and
// config are swapped atomically when the config file changes.
type Server struct {
	parser  atomic.Pointer[prompt.Parser]
	config  atomic.Pointer[am.Config]
	limiter atomic.Pointer[rate.Limiter] // nil when server.requests_per_second = 0

	clients  map[*Client]bool
	mu       sync.Mutex
	upgrader websocket.Upgrader

	httpServer    *http.Server
	configWatcher *am.ConfigWatcher
	logger        *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	state  atomic.Int32
}

// New creates a server from a validated config
func New(cfg *am.Config) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		clients: make(map[*Client]bool),
		logger:  logger.ComponentLogger("server"),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  2048,
		WriteBufferSize: 2048,
		CheckOrigin:     s.checkOrigin,
	}
	if err := s.ApplyConfig(cfg); err != nil {
		cancel()
		return nil, err
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	return s, nil
}

// ApplyConfig validates cfg and swaps in a parser and limiter built from it.
// It is registered as the config watcher's reload callback.
func (s *Server) ApplyConfig(cfg *am.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	p, err := prompt.NewParser(cfg.Parser.AttentionPlusBase, cfg.Parser.AttentionMinusBase)
	if err != nil {
		return errors.Wrap(err, "failed to build parser")
	}

	s.parser.Store(p)
	s.config.Store(cfg)
	s.applyLimits(cfg.Server)

	s.logger.Infow("Server config applied",
		"attention_plus_base", p.PlusBase(),
		"attention_minus_base", p.MinusBase(),
		"legacy_blend", cfg.Parser.LegacyBlend,
		"requests_per_second", cfg.Server.RequestsPerSecond,
	)
	return nil
}

func (s *Server) applyLimits(cfg am.ServerConfig) {
	if cfg.RequestsPerSecond <= 0 {
		s.limiter.Store(nil)
		return
	}
	if l := s.limiter.Load(); l != nil {
		l.SetLimit(rate.Limit(cfg.RequestsPerSecond))
		l.SetBurst(cfg.Burst)
		return
	}
	s.limiter.Store(rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst))
}

// Parser returns the parser currently in use
func (s *Server) Parser() *prompt.Parser {
	return s.parser.Load()
}

// Config returns the config currently in use
func (s *Server) Config() *am.Config {
	return s.config.Load()
}

func (s *Server) verbosity() int {
	return s.Config().Log.Verbosity
}

// parse runs one parse request against the current parser
func (s *Server) parse(req ParseRequest) (*ParseResponse, error) {
	if err := s.checkPromptSize(req.Prompt); err != nil {
		return nil, err
	}
	p := s.Parser()

	if req.Tree {
		positive, negative := conditioning.SplitNegative(req.Prompt)
		pos, err := p.Parse(positive)
		if err != nil {
			return nil, errors.Wrap(err, "positive prompt")
		}
		neg, err := p.Parse(negative)
		if err != nil {
			return nil, errors.Wrap(err, "negative prompt")
		}
		return &ParseResponse{
			PositiveText: positive,
			NegativeText: negative,
			Positive:     prompt.Encode(pos),
			Negative:     prompt.Encode(neg),
		}, nil
	}

	legacy := s.Config().Parser.LegacyBlend
	if req.LegacyBlend != nil {
		legacy = *req.LegacyBlend
	}
	c, err := conditioning.Build(p, req.Prompt, conditioning.Options{LegacyBlend: legacy})
	if err != nil {
		return nil, err
	}
	return &ParseResponse{
		PositiveText: c.PositiveText,
		NegativeText: c.NegativeText,
		Positive:     prompt.Encode(c.Positive),
		Negative:     prompt.Encode(c.Negative),
	}, nil
}

// legacy converts colon-weighted text with the current parser
func (s *Server) legacy(req LegacyRequest) (*LegacyResponse, error) {
	if err := s.checkPromptSize(req.Prompt); err != nil {
		return nil, err
	}
	blend, err := s.Parser().ParseLegacyBlend(req.Prompt)
	if err != nil {
		return nil, err
	}
	if blend == nil {
		return &LegacyResponse{}, nil
	}
	doc := prompt.Encode(blend)
	return &LegacyResponse{Applicable: true, Blend: &doc}, nil
}

func (s *Server) checkPromptSize(text string) error {
	if limit := s.Config().GetMaxPromptBytes(); int64(len(text)) > limit {
		return errors.Wrapf(ErrPromptTooLarge, "prompt is %d bytes, limit %d", len(text), limit)
	}
	return nil
}

// ClientCount returns the number of connected WebSocket clients
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) register(c *Client) bool {
	s.mu.Lock()
	if len(s.clients) >= MaxClients {
		s.mu.Unlock()
		s.logger.Warnw("Max clients reached, rejecting connection",
			logger.FieldClientID, c.id,
			"max_clients", MaxClients,
		)
		return false
	}
	s.clients[c] = true
	total := len(s.clients)
	s.mu.Unlock()

	s.logger.Infow("Client connected", logger.FieldClientID, c.id, "total_clients", total)
	return true
}

func (s *Server) unregister(c *Client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	total := len(s.clients)
	s.mu.Unlock()

	if ok {
		s.logger.Infow("Client disconnected", logger.FieldClientID, c.id, "total_clients", total)
	}
}
