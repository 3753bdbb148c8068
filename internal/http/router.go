// Package httpx exposes the deployment and realtime HTTP surface.
package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hemanthhhhhh/API-Server/internal/dispatch"
	"github.com/hemanthhhhhh/API-Server/internal/domain"
	"github.com/hemanthhhhhh/API-Server/internal/ws"
)

// Deployer submits deployment requests.
type Deployer interface {
	Dispatch(ctx context.Context, req domain.DeploymentRequest) (domain.Deployment, error)
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux          *http.ServeMux
	logger       *slog.Logger
	deployer     Deployer
	gateway      *ws.Gateway
	upgrader     websocket.Upgrader
	limiter      RateLimiter
	brokerHealth func(context.Context) error
	heartbeat    time.Duration
	streams      context.Context
	stopStreams  context.CancelFunc

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateWindowRealtime = 30 * time.Second
	rateLimitDeploy    = 30
	rateLimitRealtime  = 30
	healthCheckTimeout = 2 * time.Second
	sseHeartbeat       = 15 * time.Second
	maxDeployBody      = 64 << 10
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, deployer Deployer, gateway *ws.Gateway, limiter RateLimiter, brokerHealth func(context.Context) error) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		logger:   logger,
		deployer: deployer,
		gateway:  gateway,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:      limiter,
		brokerHealth: brokerHealth,
		heartbeat:    sseHeartbeat,
	}
	r.streams, r.stopStreams = context.WithCancel(context.Background())
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// StopStreams ends every open log stream. http.Server.Shutdown does not
// cancel long-lived requests, so it is registered with RegisterOnShutdown.
func (r *Router) StopStreams() {
	r.stopStreams()
}

// Close releases background resources.
func (r *Router) Close() {
	r.stopStreams()
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit(r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/project", r.audit(r.withRateLimit("/project", rateLimitDeploy, rateWindowDefault, r.handleProject)))
	r.mux.HandleFunc("/ws", r.audit(r.withRateLimit("/ws", rateLimitRealtime, rateWindowRealtime, r.handleWebsocket)))
	r.mux.HandleFunc("/logs/{slug}/stream", r.audit(r.withRateLimit("/logs/stream", rateLimitRealtime, rateWindowRealtime, r.handleLogStream)))
}

func (r *Router) handleProject(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload domain.DeploymentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxDeployBody)).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	deployment, err := r.deployer.Dispatch(req.Context(), payload)
	switch {
	case err == nil:
	case errors.Is(err, dispatch.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	default:
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": dispatch.StatusQueued,
		"data":   deployment,
	})
}

func (r *Router) handleWebsocket(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	go r.gateway.Serve(ws.NewClient(conn, r.logger))
}

func (r *Router) handleLogStream(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	room := strings.TrimSpace(req.PathValue("slug"))
	if room == "" {
		writeError(w, http.StatusBadRequest, "project slug required")
		return
	}
	if _, ok := w.(http.Flusher); !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()
	stop := context.AfterFunc(r.streams, cancel)
	defer stop()

	client := ws.NewSSEClient(w, r.logger)
	hub := r.gateway.Hub()
	hub.Connect(client)
	defer hub.Disconnect(client)
	r.gateway.Join(client, room)

	if err := client.Serve(ctx, r.heartbeat); err != nil {
		r.logger.Debug("log stream ended", "room", room, "error", err)
	}
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.brokerHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.brokerHealth(ctx); err != nil {
			status = "degraded"
			components["broker"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["broker"] = map[string]any{"status": "up"}
		}
	}
	if r.gateway != nil {
		components["realtime"] = map[string]any{"clients": r.gateway.Hub().Clients()}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) audit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		route := req.Pattern
		if route == "" {
			route = req.URL.Path
		}
		r.recordRequestMetrics(req.Method, route, status, duration)

		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		// upgraded connections are reported as switching protocols
		sr.status = http.StatusSwitchingProtocols
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
