package httpserver

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"time"

	"github.com/sdko-org/imgpress/internal/config"
	"github.com/sirupsen/logrus"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
)

func generateSelfSignedCert() (tls.Certificate, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return tls.Certificate{}, err
	}

	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"imgpress"},
		},
		DNSNames:    []string{"localhost"},
		IPAddresses: []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		NotBefore:   time.Now().Add(-time.Minute),
		NotAfter:    time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:    x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{
			x509.ExtKeyUsageServerAuth,
		},
		BasicConstraintsValid: true,
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: derBytes,
	})
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})

	return tls.X509KeyPair(certPEM, keyPEM)
}

// Servers is the running HTTP listener plus the optional HTTPS one.
type Servers struct {
	servers []*http.Server
	addrs   []net.Addr
	errs    chan error
	log     *logrus.Entry
}

// Start binds every listener before serving so address errors surface
// immediately. Serve failures arrive on Err.
func Start(logger *logrus.Logger, cfg *config.Config, handler http.Handler) (*Servers, error) {
	s := &Servers{
		errs: make(chan error, 2),
		log:  logger.WithField("component", "http_server"),
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}
	s.serve(newServer(handler), ln, "http")

	if cfg.TLSEnabled {
		cert, err := generateSelfSignedCert()
		if err != nil {
			s.Shutdown(context.Background())
			return nil, fmt.Errorf("generate self-signed certificate: %w", err)
		}
		tlsLn, err := net.Listen("tcp", cfg.TLSAddr)
		if err != nil {
			s.Shutdown(context.Background())
			return nil, fmt.Errorf("listen on %s: %w", cfg.TLSAddr, err)
		}
		srv := newServer(handler)
		srv.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
		s.serve(srv, tls.NewListener(tlsLn, srv.TLSConfig), "https")
	}

	return s, nil
}

func newServer(handler http.Handler) *http.Server {
	return &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
}

func (s *Servers) serve(srv *http.Server, ln net.Listener, scheme string) {
	s.servers = append(s.servers, srv)
	s.addrs = append(s.addrs, ln.Addr())

	log := s.log.WithFields(logrus.Fields{"scheme": scheme, "addr": ln.Addr().String()})
	log.Info("Starting server")
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Server failed")
			s.errs <- fmt.Errorf("%s server: %w", scheme, err)
		}
	}()
}

// Addrs returns the bound addresses, HTTP first.
func (s *Servers) Addrs() []net.Addr {
	return s.addrs
}

func (s *Servers) Err() <-chan error {
	return s.errs
}

// Shutdown drains every server until ctx expires.
func (s *Servers) Shutdown(ctx context.Context) error {
	var errs []error
	for _, srv := range s.servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		s.log.Info("Servers stopped")
	}
	return errors.Join(errs...)
}
