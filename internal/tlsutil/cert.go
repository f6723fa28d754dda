package tlsutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/prasenjit/go-mockserver/internal/config"
	"github.com/prasenjit/go-mockserver/internal/logging"
)

const (
	certFileName = "mockserver.crt"
	keyFileName  = "mockserver.key"
	validity     = 365 * 24 * time.Hour
)

// ErrNoCertificate is returned when no certificate exists and generation is off
var ErrNoCertificate = errors.New("no TLS certificate found and auto-generation is disabled")

// Source resolves the certificate the server presents
type Source struct {
	certFile  string
	keyFile   string
	storePath string
	generate  bool
	logger    *slog.Logger
}

// NewSource builds a Source from the server TLS settings. storePath is where
// self-signed material is cached.
func NewSource(cfg config.TLSConfig, storePath string, logger *slog.Logger) *Source {
	return &Source{
		certFile:  cfg.CertFile,
		keyFile:   cfg.KeyFile,
		storePath: storePath,
		generate:  cfg.AutoGenerate,
		logger:    logging.OrNop(logger),
	}
}

// ServerConfig returns a tls.Config ready for http.Server
func (s *Source) ServerConfig() (*tls.Config, error) {
	cert, err := s.Certificate()
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{*cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// Certificate loads the configured pair, then a cached self-signed pair, and
// finally generates a new one when allowed. Cached certificates that have
// expired are regenerated.
func (s *Source) Certificate() (*tls.Certificate, error) {
	if s.certFile != "" && s.keyFile != "" {
		cert, err := tls.LoadX509KeyPair(s.certFile, s.keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load certificate from %s and %s: %w", s.certFile, s.keyFile, err)
		}
		return &cert, nil
	}

	certPath, keyPath := s.Paths()
	if cert, err := tls.LoadX509KeyPair(certPath, keyPath); err == nil {
		if !expired(&cert) {
			return &cert, nil
		}
		s.logger.Info("cached self-signed certificate expired", "path", certPath)
	}

	if !s.generate {
		return nil, ErrNoCertificate
	}

	cert, err := s.selfSign()
	if err != nil {
		return nil, err
	}
	s.logger.Info("generated self-signed certificate", "path", certPath)
	return cert, nil
}

// Paths returns where the certificate and key are read from
func (s *Source) Paths() (certPath, keyPath string) {
	if s.certFile != "" && s.keyFile != "" {
		return s.certFile, s.keyFile
	}
	return filepath.Join(s.storePath, certFileName), filepath.Join(s.storePath, keyFileName)
}

func expired(cert *tls.Certificate) bool {
	leaf := cert.Leaf
	if leaf == nil && len(cert.Certificate) > 0 {
		parsed, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return true
		}
		leaf = parsed
	}
	return leaf == nil || time.Now().After(leaf.NotAfter)
}

func (s *Source) selfSign() (*tls.Certificate, error) {
	if err := os.MkdirAll(s.storePath, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create certificate store directory: %w", err)
	}

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	notBefore := time.Now().Add(-time.Minute)
	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"go-mockserver"},
			CommonName:   "go-mockserver self-signed",
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           append([]net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")}, localIPs()...),
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	keyDER, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	certPath, keyPath := s.Paths()
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return nil, fmt.Errorf("failed to save certificate: %w", err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return nil, fmt.Errorf("failed to save private key: %w", err)
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated certificate: %w", err)
	}
	return &cert, nil
}

// localIPs returns non-loopback interface addresses; errors yield none
func localIPs() []net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}

	var ips []net.IP
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			ips = append(ips, ipnet.IP)
		}
	}
	return ips
}
