package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"vanet-sim/internal/config"
	"vanet-sim/internal/logging"
	"vanet-sim/internal/scenario"
	"vanet-sim/internal/sim"
)

type Server struct {
	Sim     *sim.Simulator
	metrics http.Handler
	tpl     *template.Template
}

//go:embed templates/index.html
var content embed.FS

var funcs = template.FuncMap{
	"num": func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return strconv.FormatFloat(*v, 'f', 3, 64)
	},
}

// NewServer wraps s. metrics may be nil, in which case /metrics is not served.
func NewServer(s *sim.Simulator, metrics http.Handler) *Server {
	tpl := template.Must(template.New("index.html").Funcs(funcs).ParseFS(content, "templates/index.html"))
	return &Server{Sim: s, metrics: metrics, tpl: tpl}
}

// Handler returns the admin routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /config", s.handleConfig)
	mux.HandleFunc("POST /configure", s.handleConfigure)
	mux.HandleFunc("POST /start", s.lifecycle(s.Sim.Start))
	mux.HandleFunc("POST /pause", s.lifecycle(s.Sim.Pause))
	mux.HandleFunc("POST /stop", s.lifecycle(s.Sim.Stop))
	mux.HandleFunc("POST /reset", s.lifecycle(s.Sim.Reset))
	mux.HandleFunc("POST /step", s.handleStep)
	mux.HandleFunc("POST /inject", s.handleInject)
	mux.HandleFunc("POST /scenario", s.handleScenario)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

// Start serves the admin API on addr until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	log := logging.FromContext(ctx)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("admin server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info("admin server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sim.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, config.ErrInvalidConfig):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func badRequest(w http.ResponseWriter, format string, args ...any) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf(format, args...)})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, s.Sim.Snapshot()); err != nil {
		logging.FromContext(r.Context()).Error("render index", "err", err)
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.Snapshot())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.History())
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.Config())
}

// handleConfigure merges the JSON body over the active configuration, so
// clients may send only the fields they change.
func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	cfg := s.Sim.Config()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		badRequest(w, "decode config: %v", err)
		return
	}
	if err := s.Sim.Configure(cfg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Sim.Config())
}

func (s *Server) lifecycle(fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"state": s.Sim.State()})
	}
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	dt := s.Sim.Config().TickSeconds
	if v := r.URL.Query().Get("dt"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			badRequest(w, "invalid dt %q", v)
			return
		}
		dt = parsed
	}
	res, err := s.Sim.Step(dt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type injectRequest struct {
	Src  int `json:"src"`
	Dst  int `json:"dst"`
	Size int `json:"size"`
}

// handleInject accepts either src, dst and size query parameters or a JSON body.
func (s *Server) handleInject(w http.ResponseWriter, r *http.Request) {
	var req injectRequest
	if q := r.URL.Query(); q.Has("src") {
		var err error
		if req, err = parseInjectQuery(q); err != nil {
			badRequest(w, "%v", err)
			return
		}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "decode inject request: %v", err)
		return
	}
	id, err := s.Sim.Inject(req.Src, req.Dst, req.Size)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"packet_id": id})
}

// handleScenario plays a built-in scenario on the simulator. It must be idle.
func (s *Server) handleScenario(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	sc, ok := scenario.BuiltIn()[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": fmt.Sprintf("unknown scenario %q", name), "available": scenario.Names()})
		return
	}
	res, err := sim.RunScenario(r.Context(), s.Sim, sc)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func parseInjectQuery(q url.Values) (injectRequest, error) {
	var req injectRequest
	for _, f := range []struct {
		name     string
		dst      *int
		required bool
	}{
		{"src", &req.Src, true},
		{"dst", &req.Dst, true},
		{"size", &req.Size, false},
	} {
		v := q.Get(f.name)
		if v == "" {
			if f.required {
				return req, fmt.Errorf("missing %s", f.name)
			}
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid %s %q", f.name, v)
		}
		*f.dst = n
	}
	return req, nil
}
