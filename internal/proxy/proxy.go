package proxy

import (
	"fmt"
	"math/rand/v2"
	"net/url"
	"strconv"
)

const (
	DefaultHost = "brd.superproxy.io"
	DefaultPort = 22225

	sessionIDSpace = 1_000_000
)

type Config struct {
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	AllowInsecureTLS bool   `yaml:"allowInsecureTls"`
}

// SessionIDGenerator yields the identifier appended to the proxy username.
// Each distinct id pins a distinct upstream exit.
type SessionIDGenerator interface {
	Next() int
}

type randomIDs struct{}

func (randomIDs) Next() int {
	return rand.IntN(sessionIDSpace)
}

type Session struct {
	ID               int
	Username         string
	Password         string
	Host             string
	Port             int
	AllowInsecureTLS bool
}

// Enabled is false when no credentials are configured; fetchers then connect
// directly.
func (s Session) Enabled() bool {
	return s.Username != "" && s.Host != ""
}

func (s Session) Address() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// ProxyURL returns nil for a disabled session.
func (s Session) ProxyURL() *url.URL {
	if !s.Enabled() {
		return nil
	}
	return &url.URL{
		Scheme: "http",
		User:   url.UserPassword(s.Username, s.Password),
		Host:   s.Address(),
	}
}

type Provider struct {
	cfg Config
	ids SessionIDGenerator
}

type Option func(*Provider)

func WithIDGenerator(g SessionIDGenerator) Option {
	return func(p *Provider) {
		p.ids = g
	}
}

func NewProvider(cfg Config, opts ...Option) *Provider {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	p := &Provider{cfg: cfg, ids: randomIDs{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewSession draws a fresh session id. Call once per scrape attempt.
func (p *Provider) NewSession() Session {
	s := Session{
		Password:         p.cfg.Password,
		Host:             p.cfg.Host,
		Port:             p.cfg.Port,
		AllowInsecureTLS: p.cfg.AllowInsecureTLS,
	}
	if p.cfg.Username == "" {
		return s
	}
	s.ID = p.ids.Next()
	s.Username = fmt.Sprintf("%s-session-%d", p.cfg.Username, s.ID)
	return s
}
