package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	bridge "github.com/bt-bridge/voice-gateway"
	"github.com/bt-bridge/voice-gateway/registry"
	"github.com/bt-bridge/voice-gateway/shared"
	"github.com/bt-bridge/voice-gateway/store"
	"github.com/bt-bridge/voice-gateway/telephony"
)

// Environment variable keys
const (
	envKeyConfigFile = "VOICE_GATEWAY_CONFIG"
	envKeyAPIKey     = "OPENAI_API_KEY"
	envKeyListenAddr = "VOICE_GATEWAY_LISTEN_ADDR"
	envKeyStreamURL  = "VOICE_GATEWAY_STREAM_URL"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := shared.MustGetenv(shared.GetenvString, envKeyConfigFile, false, "voice-gateway.yaml")
	cfg, err := shared.LoadConfig(configPath)
	if err != nil {
		panic(err)
	}
	if addr := shared.MustGetenv(shared.GetenvString, envKeyListenAddr, false, ""); addr != "" {
		cfg.ListenAddr = addr
	}
	defaultAPIKey := shared.MustGetenv(shared.GetenvString, envKeyAPIKey, false, "")
	streamURL := shared.MustGetenv(shared.GetenvString, envKeyStreamURL, false, "")

	var logger shared.LoggerAdapter
	if cfg.Log.File != "" {
		logger = shared.NewFileLogger(cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays, cfg.Log.Compress)
	} else {
		logger = shared.NewStdLogger()
	}
	logger.Info("starting voice gateway", zap.String("version", shared.Version), zap.String("listen_addr", cfg.ListenAddr))

	promRegistry := prometheus.NewRegistry()
	metrics := shared.NewMetrics(promRegistry)

	var agents store.AgentSource
	if cfg.Agents.File != "" {
		src, err := store.NewFileAgentSource(cfg.Agents.File)
		if err != nil {
			logger.Error("loading agent file", err, zap.String("file", cfg.Agents.File))
			os.Exit(1)
		}
		agents = src
	} else {
		agents = store.StaticAgents{}
	}

	var credentials store.CredentialSource
	if cfg.Credentials.File != "" {
		src, err := store.NewFileCredentialSource(cfg.Credentials.File)
		if err != nil {
			logger.Error("loading credential file", err, zap.String("file", cfg.Credentials.File))
			os.Exit(1)
		}
		credentials = src
	}

	crm := newMemoryCRM()
	scheduler := newMemoryScheduler()
	reg, err := registry.New(
		logger,
		registry.NewLookupContact(crm),
		registry.NewCreateContact(crm),
		registry.NewLogInteraction(crm),
		registry.NewCheckAvailability(scheduler),
		registry.NewBookAppointment(scheduler),
	)
	if err != nil {
		logger.Error("building tool registry", err)
		os.Exit(1)
	}

	manager, err := bridge.NewManager(
		logger,
		cfg.Upstream.BaseURL,
		cfg.Upstream.Model,
		cfg.Upstream.ConnectTimeout,
		cfg.Session.EventBuffer,
		credentials,
		defaultAPIKey,
	)
	if err != nil {
		logger.Error("building upstream manager", err)
		os.Exit(1)
	}

	gateway, err := bridge.NewGateway(logger, metrics, reg, agents, manager, cfg.Session.DrainGracePeriod)
	if err != nil {
		logger.Error("building gateway", err)
		os.Exit(1)
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1 << 16,
		WriteBufferSize: 1 << 16,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/ws/realtime/", func(w http.ResponseWriter, r *http.Request) {
		agentId := strings.TrimPrefix(r.URL.Path, "/ws/realtime/")
		if agentId == "" || strings.Contains(agentId, "/") {
			http.Error(w, "missing agent id", http.StatusNotFound)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		// the request context dies when this handler returns, so the
		// session gets its own
		outcome, err := gateway.Open(context.Background(), bridge.NewWSClientTransport(conn), agentId)
		if err != nil {
			logger.Warn(
				"session ended with error",
				zap.String("session_id", outcome.SessionId),
				zap.String("state", outcome.State.String()),
				zap.Error(err),
			)
		}
	})
	if streamURL != "" {
		mux.HandleFunc("/telephony/answer/", func(w http.ResponseWriter, r *http.Request) {
			agentId := strings.TrimPrefix(r.URL.Path, "/telephony/answer/")
			body, err := telephony.AnswerDocument(streamURL, agentId)
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/xml")
			_, _ = w.Write(body)
		})
		mux.HandleFunc("/telephony/status", func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			logger.Info(
				"call status",
				zap.String("call_sid", r.PostForm.Get("CallSid")),
				zap.String("status", r.PostForm.Get("CallStatus")),
			)
			w.WriteHeader(http.StatusNoContent)
		})
	}

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	errC := make(chan error, 1)
	go func() {
		errC <- server.ListenAndServe()
	}()

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigC:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown", err)
		}
	case err := <-errC:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", err)
			os.Exit(1)
		}
	}
}
