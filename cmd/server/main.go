package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/miretskiy/pqcbench/sampler"
)

//go:embed templates/index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		return true
	},
}

// ClientMessage is a command sent by the browser
type ClientMessage struct {
	Type        string `json:"type"` // start, pause, reset, select
	CryptoMode  string `json:"crypto_mode,omitempty"`
	LoadProfile string `json:"load_profile,omitempty"`
}

// ServerMessage is a status, sample or error update sent to the browser
type ServerMessage struct {
	Type         string          `json:"type"` // status, sample, error
	Running      *bool           `json:"running,omitempty"`
	CryptoMode   string          `json:"crypto_mode,omitempty"`
	LoadProfile  string          `json:"load_profile,omitempty"`
	CryptoModes  []string        `json:"crypto_modes,omitempty"`
	LoadProfiles []string        `json:"load_profiles,omitempty"`
	Sample       *sampler.Sample `json:"sample,omitempty"`
	Valid        *bool           `json:"valid,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// server streams samples to websocket clients
type server struct {
	cfg                *sampler.Config
	defaultCryptoMode  string
	defaultLoadProfile string
	seed               *int64
	tick               time.Duration
	logger             *zap.Logger
	metrics            *promMetrics
	registry           *prometheus.Registry
	shutdown           func()
}

func newServer(cfg *sampler.Config, tick time.Duration, seed *int64, logger *zap.Logger, shutdown func()) (*server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &server{
		cfg:                cfg,
		defaultCryptoMode:  cfg.CryptoModeNames()[0],
		defaultLoadProfile: cfg.LoadProfileNames()[0],
		seed:               seed,
		tick:               tick,
		logger:             logger,
		metrics:            newPromMetrics(reg),
		registry:           reg,
		shutdown:           shutdown,
	}, nil
}

func (srv *server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", srv.serveHome).Methods(http.MethodGet)
	r.HandleFunc("/ws", srv.handleWebSocket)
	r.Handle("/metrics", promhttp.HandlerFor(srv.registry, promhttp.HandlerOpts{}))
	r.HandleFunc("/quitquitquit", srv.quitHandler).Methods(http.MethodGet, http.MethodPost)
	return r
}

// safeConn wraps a WebSocket connection with a mutex to prevent concurrent writes
type safeConn struct {
	*websocket.Conn
	writeMu sync.Mutex
}

func (sc *safeConn) WriteJSON(v interface{}) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	return sc.Conn.WriteJSON(v)
}

func (srv *server) status(state *simState) ServerMessage {
	running := state.isRunning()
	mode, load := state.selection()
	return ServerMessage{
		Type:         "status",
		Running:      &running,
		CryptoMode:   mode,
		LoadProfile:  load,
		CryptoModes:  srv.cfg.CryptoModeNames(),
		LoadProfiles: srv.cfg.LoadProfileNames(),
	}
}

// uiUpdateLoop sends one sample per tick while the stream is running
func (srv *server) uiUpdateLoop(conn *safeConn, state *simState) {
	ticker := time.NewTicker(srv.tick)
	defer ticker.Stop()

	for {
		select {
		case <-state.stopCh:
			srv.logger.Debug("UI update loop stopping")
			return

		case <-ticker.C:
			sample, valid, ok, err := state.next()
			if err != nil {
				srv.logger.Error("generating sample", zap.Error(err))
				continue
			}
			if !ok {
				continue
			}
			srv.metrics.observe(sample, valid)
			if !valid {
				srv.logger.Warn("streamed sample failed validation",
					zap.String("crypto_mode", sample.CryptoMode),
					zap.String("load_profile", sample.LoadProfile),
					zap.Float64("timestamp", sample.Timestamp))
			}
			if err := conn.WriteJSON(ServerMessage{Type: "sample", Sample: &sample, Valid: &valid}); err != nil {
				srv.logger.Info("error sending sample", zap.Error(err))
				return
			}
		}
	}
}

func (srv *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.logger.Warn("error upgrading connection", zap.Error(err))
		return
	}
	defer conn.Close()

	safeConn := &safeConn{Conn: conn}
	logger := srv.logger.With(zap.String("remote", r.RemoteAddr))
	logger.Info("client connected")

	state, err := newSimState(srv.cfg, srv.defaultCryptoMode, srv.defaultLoadProfile, srv.seed, logger)
	if err != nil {
		logger.Error("error creating sampler", zap.Error(err))
		return
	}
	defer state.stop()

	if err := safeConn.WriteJSON(srv.status(state)); err != nil {
		logger.Info("error sending status", zap.Error(err))
		return
	}

	go srv.uiUpdateLoop(safeConn, state)

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Info("error reading message", zap.Error(err))
			}
			break
		}
		logger.Debug("received command", zap.String("type", msg.Type))

		var cmdErr error
		switch msg.Type {
		case "start":
			state.start()
		case "pause":
			state.pause()
		case "reset":
			cmdErr = state.reset()
		case "select":
			mode, load := state.selection()
			if msg.CryptoMode != "" {
				mode = msg.CryptoMode
			}
			if msg.LoadProfile != "" {
				load = msg.LoadProfile
			}
			cmdErr = state.selectProfile(mode, load)
		default:
			cmdErr = fmt.Errorf("unknown command %q", msg.Type)
		}

		reply := srv.status(state)
		if cmdErr != nil {
			reply = ServerMessage{Type: "error", Error: cmdErr.Error()}
		}
		if err := safeConn.WriteJSON(reply); err != nil {
			logger.Info("error sending reply", zap.Error(err))
			break
		}
	}
	logger.Info("client disconnected")
}

func (srv *server) serveHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, nil); err != nil {
		srv.logger.Error("error executing template", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (srv *server) quitHandler(w http.ResponseWriter, r *http.Request) {
	srv.logger.Info("shutdown requested via /quitquitquit")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "Server shutting down...")
	if srv.shutdown != nil {
		go srv.shutdown()
	}
}

type serveOptions struct {
	addr       string
	configPath string
	tick       time.Duration
	seed       *int64
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &serveOptions{seed: new(int64)}
	cmd := &cobra.Command{
		Use:          "server",
		Short:        "Stream synthetic PQC benchmark samples over a websocket",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("seed") {
				opts.seed = nil
			}
			return serve(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.addr, "addr", envOr("PQCSYNTH_ADDR", ":8080"), "Listen address")
	f.StringVarP(&opts.configPath, "config", "c", os.Getenv("PQCSYNTH_CONFIG"), "Path to the YAML configuration (default: built-in)")
	f.DurationVar(&opts.tick, "tick", 500*time.Millisecond, "Interval between streamed samples")
	f.Int64Var(opts.seed, "seed", 0, "Random seed for every stream; random when unset")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func serve(ctx context.Context, opts *serveOptions) error {
	var logger *zap.Logger
	var err error
	if opts.verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg := sampler.DefaultConfig()
	if opts.configPath != "" {
		if cfg, err = sampler.LoadConfig(opts.configPath); err != nil {
			return err
		}
	}
	if opts.tick <= 0 {
		return fmt.Errorf("--tick must be > 0")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(cfg, opts.tick, opts.seed, logger, stop)
	if err != nil {
		return err
	}
	httpServer := &http.Server{Addr: opts.addr, Handler: srv.routes()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	logger.Info("server starting",
		zap.String("addr", opts.addr),
		zap.String("websocket", "/ws"),
		zap.String("metrics", "/metrics"),
		zap.String("shutdown", "/quitquitquit"))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
