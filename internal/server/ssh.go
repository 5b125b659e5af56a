// Package server is the SSH front end: it accepts connections, drives the
// wire-level authentication exchange, and delegates every accept/reject
// decision to the checker aggregator.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/pmork/gatekeep/internal/checkers"
	"github.com/pmork/gatekeep/internal/creds"
)

const authTimeout = 30 * time.Second

// Server accepts incoming SSH connections and authenticates them through a
// checker aggregator.
type Server struct {
	addr        string
	hostKeyPath string
	agg         *checkers.Aggregator
	signers     []ssh.Signer

	// Handler runs for each authenticated session channel. The default
	// prints the authenticated identity and closes.
	Handler func(username string, ch ssh.Channel)

	attemptMu sync.Mutex
	attempts  map[string]*connAttempt
}

// New creates a server listening on port, loading or generating host keys
// at hostKeyPath.
func New(port int, hostKeyPath string, agg *checkers.Aggregator) (*Server, error) {
	s := &Server{
		addr:        fmt.Sprintf(":%d", port),
		hostKeyPath: hostKeyPath,
		agg:         agg,
		attempts:    make(map[string]*connAttempt),
	}
	if err := s.loadOrGenerateHostKeys(); err != nil {
		return nil, fmt.Errorf("host key: %w", err)
	}
	return s, nil
}

// serverConfig builds a per-connection configuration. Each connection gets
// fresh auth callbacks so multi-factor progress is scoped to that
// connection's login attempt.
func (s *Server) serverConfig() *ssh.ServerConfig {
	cfg := &ssh.ServerConfig{
		Config: ssh.Config{
			KeyExchanges: []string{
				"curve25519-sha256",
				"curve25519-sha256@libssh.org",
				"ecdh-sha2-nistp256",
				"ecdh-sha2-nistp384",
				"ecdh-sha2-nistp521",
				"diffie-hellman-group-exchange-sha256",
				"diffie-hellman-group14-sha256",
				"diffie-hellman-group16-sha512",
				// Legacy for older SSH clients
				"diffie-hellman-group-exchange-sha1",
				"diffie-hellman-group14-sha1",
			},
			Ciphers: []string{
				"chacha20-poly1305@openssh.com",
				"aes128-gcm@openssh.com",
				"aes256-gcm@openssh.com",
				"aes128-ctr",
				"aes192-ctr",
				"aes256-ctr",
			},
		},
		ServerVersion: "SSH-2.0-gatekeep",
	}

	callbacks := s.authCallbacks(nil)
	cfg.PasswordCallback = callbacks.PasswordCallback
	cfg.PublicKeyCallback = callbacks.PublicKeyCallback

	for _, signer := range s.signers {
		cfg.AddHostKey(signer)
	}
	return cfg
}

// authCallbacks builds the callback set for one stage of a login attempt.
// Multi-factor progress is encoded in the callback chain itself: a verified
// factor that does not yet satisfy policy returns ssh.PartialSuccessError
// whose Next callbacks carry the enlarged satisfied set. For public keys the
// library only honors that result after verifying the wire signature, so a
// probed-but-never-signed key can never count as a factor.
func (s *Server) authCallbacks(satisfied []creds.Kind) ssh.ServerAuthCallbacks {
	var cb ssh.ServerAuthCallbacks

	if s.agg.Handles(creds.KindPassword) {
		cb.PasswordCallback = func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			cred := creds.Password{Username: c.User(), Password: string(pass)}
			return s.decide(c, cred.Kind(), cred, satisfied)
		}
	}
	if s.agg.Handles(creds.KindPublicKey) {
		cb.PublicKeyCallback = func(c ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			// No signature here: the transport verifies possession on
			// the wire, so the checker's signature-required outcome is
			// this adapter's accept signal.
			cred := creds.PublicKey{
				Username:  c.User(),
				Algorithm: key.Type(),
				Blob:      key.Marshal(),
			}
			return s.decide(c, cred.Kind(), cred, satisfied)
		}
	}
	return cb
}

func (s *Server) decide(meta ssh.ConnMetadata, kind creds.Kind, cred creds.Credential, satisfied []creds.Kind) (*ssh.Permissions, error) {
	checker, ok := s.agg.Checker(kind)
	if !ok {
		return nil, checkers.ErrUnhandled
	}

	ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
	defer cancel()

	username, err := checker.Authenticate(ctx, cred)
	switch {
	case err == nil:
	case errors.Is(err, checkers.ErrSignatureRequired) && kind == creds.KindPublicKey:
		username = cred.User()
	default:
		return nil, err
	}

	now := append(append([]creds.Kind(nil), satisfied...), kind)
	if !s.agg.Done(username, now) {
		return nil, &ssh.PartialSuccessError{Next: s.authCallbacks(now)}
	}

	log.Printf("auth: %s from %s via %s", username, meta.RemoteAddr(), kind)
	return &ssh.Permissions{
		Extensions: map[string]string{"gatekeep-user": username},
	}, nil
}

type connAttempt struct {
	last  time.Time
	count int
}

// allowConnection applies a per-host backoff to slow anonymous flooding.
func (s *Server) allowConnection(host string) (time.Duration, bool) {
	const (
		window     = 10 * time.Second
		resetAfter = 30 * time.Second
		maxCount   = 30
		step       = 250 * time.Millisecond
		maxDelay   = 5 * time.Second
	)

	now := time.Now()

	s.attemptMu.Lock()
	defer s.attemptMu.Unlock()

	a := s.attempts[host]
	if a == nil {
		a = &connAttempt{last: now}
		s.attempts[host] = a
	}

	if now.Sub(a.last) > resetAfter {
		a.count = 0
	}
	if now.Sub(a.last) <= window {
		a.count++
	} else {
		a.count = 1
	}
	a.last = now

	if a.count > maxCount {
		return 0, false
	}
	if a.count <= 3 {
		return 0, true
	}
	d := time.Duration(a.count-3) * step
	if d > maxDelay {
		d = maxDelay
	}
	return d, true
}

// ListenAndServe starts accepting SSH connections.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	defer ln.Close()

	log.Printf("SSH server listening on %s", s.addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("SSH accept error: %v", err)
			continue
		}
		go s.handleConnection(conn)
	}
}

// handleConnection processes a single SSH connection.
func (s *Server) handleConnection(conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	if delay, ok := s.allowConnection(host); !ok {
		conn.Close()
		return
	} else if delay > 0 {
		time.Sleep(delay)
	}

	_ = conn.SetDeadline(time.Now().Add(authTimeout))

	sshConn, chans, reqs, err := ssh.NewServerConn(conn, s.serverConfig())
	if err != nil {
		log.Printf("SSH handshake failed from %s: %v", remoteAddr, err)
		conn.Close()
		return
	}
	defer sshConn.Close()
	_ = conn.SetDeadline(time.Time{})

	username := sshConn.Permissions.Extensions["gatekeep-user"]
	log.Printf("SSH connection from %s (user: %s)", remoteAddr, username)

	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}

		channel, requests, err := newChannel.Accept()
		if err != nil {
			log.Printf("SSH channel accept error: %v", err)
			continue
		}

		go func() {
			for req := range requests {
				switch req.Type {
				case "pty-req", "shell":
					if req.WantReply {
						req.Reply(true, nil)
					}
					if req.Type == "shell" {
						s.runSession(username, channel)
						channel.Close()
						return
					}
				default:
					if req.WantReply {
						req.Reply(false, nil)
					}
				}
			}
		}()
	}
}

func (s *Server) runSession(username string, ch ssh.Channel) {
	if s.Handler != nil {
		s.Handler(username, ch)
		return
	}
	fmt.Fprintf(ch, "authenticated as %s\r\n", username)
}
