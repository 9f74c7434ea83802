// cmd/storefront/main.go
package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"storefront/internal/adapters/in/http/middleware"
	appcfg "storefront/internal/infra/config"
	"storefront/internal/infra/telemetry"
	mallDI "storefront/internal/platform/di/mall"
	shared "storefront/internal/platform/di/shared"
)

// atomicHandler allows swapping the underlying handler at runtime safely.
type atomicHandler struct {
	v atomic.Value // stores http.Handler
}

func newAtomicHandler(initial http.Handler) *atomicHandler {
	ah := &atomicHandler{}
	if initial == nil {
		initial = http.NotFoundHandler()
	}
	ah.v.Store(initial)
	return ah
}

func (h *atomicHandler) Store(next http.Handler) {
	if next == nil {
		return
	}
	h.v.Store(next)
}

func (h *atomicHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cur := h.v.Load()
	if cur == nil {
		http.NotFound(w, r)
		return
	}
	cur.(http.Handler).ServeHTTP(w, r)
}

// lifetime owns the resources built in the background. release may be called from the
// init goroutine and the signal handler at the same time; each resource is closed once.
type lifetime struct {
	infra atomic.Pointer[shared.Infra]
	cont  atomic.Pointer[mallDI.Container]
}

// release closes the container before infra (queued remote writes still need Firestore).
// It reports which of the two this call closed.
func (l *lifetime) release() (contClosed, infraClosed bool) {
	if cont := l.cont.Swap(nil); cont != nil {
		log.Printf("[boot] closing cart sessions...")
		if err := cont.Close(); err != nil {
			log.Printf("[boot] container close error: %v", err)
		}
		contClosed = true
	}
	if infra := l.infra.Swap(nil); infra != nil {
		log.Printf("[boot] closing infra resources...")
		if err := infra.Close(); err != nil {
			log.Printf("[boot] infra close error: %v", err)
		}
		infraClosed = true
	}
	return contClosed, infraClosed
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func main() {
	ctx := context.Background()
	cfg := appcfg.Load()

	// ─────────────────────────────────────────────────────────────
	// Log output: stdout + (best-effort) file
	// ─────────────────────────────────────────────────────────────
	if logPath := strings.TrimSpace(cfg.LogFile); logPath != "" {
		if f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644); err == nil {
			log.SetOutput(io.MultiWriter(os.Stdout, f))
			log.Printf("[boot] log output = stdout + %s", logPath)
		} else {
			log.Printf("[boot] WARN: could not open %s: %v (stdout only)", logPath, err)
		}
	}

	shutdownTracing, err := telemetry.InitTracerProvider(ctx, "storefront", cfg.OTLPEndpoint)
	if err != nil {
		log.Printf("[boot] WARN: tracing init failed: %v (continuing without traces)", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	wrap := func(h http.Handler) http.Handler {
		return middleware.CORS(cfg.CORSAllowOrigin)(middleware.Recover(h))
	}

	// ─────────────────────────────────────────────────────────────
	// Start listening ASAP with lightweight mux (healthz only)
	// ─────────────────────────────────────────────────────────────
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", healthz)

	switcher := newAtomicHandler(wrap(healthMux))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      switcher,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ─────────────────────────────────────────────────────────────
	// Lifetime management (infra/container)
	// ─────────────────────────────────────────────────────────────
	var life lifetime

	shuttingDown := make(chan struct{})

	// ─────────────────────────────────────────────────────────────
	// Graceful shutdown
	// ─────────────────────────────────────────────────────────────
	idleConnsClosed := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		sig := <-c

		close(shuttingDown)
		log.Printf("[boot] received signal: %v; shutting down...", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[boot] server shutdown error: %v", err)
		}

		life.release()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("[boot] tracer shutdown error: %v", err)
		}

		close(idleConnsClosed)
	}()

	// Start server NOW (Cloud Run startup requirement)
	go func() {
		log.Printf("[boot] listening on :%s (storefront)", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[boot] server error: %v", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────
	// Heavy DI init in background; then swap handler to full app mux
	// ─────────────────────────────────────────────────────────────
	go func() {
		initCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()

		infra, err := shared.NewInfra(initCtx, cfg)
		if err != nil {
			log.Printf("[boot] WARN: shared infra init failed: %v (serving /healthz only)", err)
			return
		}
		life.infra.Store(infra)

		cont, err := mallDI.NewContainer(initCtx, infra)
		if err != nil {
			life.release()
			log.Printf("[boot] WARN: di init failed: %v (serving /healthz only)", err)
			return
		}
		life.cont.Store(cont)

		select {
		case <-shuttingDown:
			life.release()
			return
		default:
		}

		fullMux := http.NewServeMux()
		fullMux.HandleFunc("/healthz", healthz)
		mallDI.Register(fullMux, cont)
		log.Printf("[boot] storefront routes registered")

		switcher.Store(wrap(fullMux))
		log.Printf("[boot] handler switched to storefront router")
	}()

	<-idleConnsClosed
	log.Printf("[boot] server stopped")
}
