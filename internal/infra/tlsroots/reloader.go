package tlsroots

import (
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/yndnr/kernelgate/internal/infra/confloader"
	"github.com/yndnr/kernelgate/internal/telemetry/logger"
)

// CertReloader serves a certificate pair and reloads it when either file
// changes. A failed reload keeps the previous certificate.
type CertReloader struct {
	certFile string
	keyFile  string
	debounce time.Duration
	logger   logger.Logger

	mu   sync.RWMutex
	cert *tls.Certificate

	reloadMu   sync.Mutex
	lastReload time.Time

	watcher *confloader.Watcher
}

// ReloaderOption configures a CertReloader.
type ReloaderOption func(*CertReloader)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) ReloaderOption {
	return func(r *CertReloader) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithDebounce sets the minimum interval between reloads.
func WithDebounce(d time.Duration) ReloaderOption {
	return func(r *CertReloader) {
		r.debounce = d
	}
}

// NewCertReloader loads the pair once. Call Watch to follow changes.
func NewCertReloader(certFile, keyFile string, opts ...ReloaderOption) (*CertReloader, error) {
	r := &CertReloader{
		certFile: certFile,
		keyFile:  keyFile,
		debounce: 500 * time.Millisecond,
		logger:   logger.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.Reload(); err != nil {
		return nil, fmt.Errorf("tlsroots: initial load: %w", err)
	}
	return r, nil
}

// Watch starts following the certificate files in the background.
func (r *CertReloader) Watch() error {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(r.logger))
	if err != nil {
		return fmt.Errorf("tlsroots: create watcher: %w", err)
	}
	for _, f := range []string{r.certFile, r.keyFile} {
		if err := w.Watch(f); err != nil {
			_ = w.Stop()
			return fmt.Errorf("tlsroots: watch %s: %w", f, err)
		}
	}
	w.OnChange(func(string) {
		if err := r.debouncedReload(); err != nil {
			r.logger.Error("certificate reload failed",
				"error", err,
				"cert_file", r.certFile,
			)
		}
	})
	w.StartAsync()

	r.mu.Lock()
	r.watcher = w
	r.mu.Unlock()
	r.logger.Info("watching certificate for changes", "cert_file", r.certFile, "key_file", r.keyFile)
	return nil
}

// Stop stops watching. It is safe to call without Watch.
func (r *CertReloader) Stop() error {
	r.mu.Lock()
	w := r.watcher
	r.watcher = nil
	r.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Stop()
}

// Reload re-reads the pair from disk.
func (r *CertReloader) Reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	r.mu.Lock()
	r.cert = &cert
	r.mu.Unlock()
	return nil
}

// GetCertificate implements tls.Config.GetCertificate.
func (r *CertReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert, nil
}

// ServerConfig returns a TLS configuration that always presents the
// current certificate.
func (r *CertReloader) ServerConfig() *tls.Config {
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: r.GetCertificate,
	}
}

// debouncedReload collapses the burst of events an editor or cert
// manager produces when it rewrites both files.
func (r *CertReloader) debouncedReload() error {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	now := time.Now()
	if now.Sub(r.lastReload) < r.debounce {
		return nil
	}
	r.lastReload = now

	// Writers often truncate then write; give them a moment.
	time.Sleep(100 * time.Millisecond)

	if err := r.Reload(); err != nil {
		return err
	}
	r.logger.Info("certificate reloaded", "cert_file", r.certFile)
	return nil
}
