package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trickstertwo/xlog4"
)

type loggerView struct {
	Name      string   `json:"name"`
	Level     string   `json:"level,omitempty"`
	Effective string   `json:"effective"`
	Additive  bool     `json:"additive"`
	Mode      string   `json:"mode"`
	Appenders []string `json:"appenders"`
}

type asyncView struct {
	Running   bool   `json:"running"`
	Len       int    `json:"len"`
	Cap       int    `json:"cap"`
	Remaining int    `json:"remaining"`
	Discarded uint64 `json:"discarded"`
}

// newRouter serves the admin API for lctx:
//
//	GET /metrics             Prometheus exposition from g
//	GET /loggers             logger tree of the running configuration
//	PUT /loggers/{name}      set a level (?level=DEBUG); "root" names the root
//	GET /async               async delegate introspection
func newRouter(lctx *xlog4.LoggerContext, g prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	r.Route("/loggers", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			lcs := lctx.Configuration().LoggerConfigs()
			out := make([]loggerView, 0, len(lcs))
			for _, lc := range lcs {
				out = append(out, view(lc))
			}
			writeJSON(w, http.StatusOK, out)
		})
		r.Put("/{name}", func(w http.ResponseWriter, req *http.Request) {
			name := chi.URLParam(req, "name")
			if name == "root" {
				name = ""
			}
			lvl, err := xlog4.ParseLevel(req.URL.Query().Get("level"))
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			if err := lctx.SetLevel(name, lvl); err != nil {
				writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
				return
			}
			lc, _ := lctx.Configuration().LoggerConfig(name)
			writeJSON(w, http.StatusOK, view(lc))
		})
	})

	r.Get("/async", func(w http.ResponseWriter, _ *http.Request) {
		d := lctx.Configuration().AsyncDelegate()
		if d == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "configuration has no async loggers"})
			return
		}
		writeJSON(w, http.StatusOK, asyncView{
			Running:   d.Running(),
			Len:       d.Len(),
			Cap:       d.Cap(),
			Remaining: d.RemainingCapacity(),
			Discarded: d.DiscardCount(),
		})
	})
	return r
}

func view(lc *xlog4.LoggerConfig) loggerView {
	v := loggerView{
		Name:      lc.Name(),
		Effective: lc.EffectiveLevel().String(),
		Additive:  lc.Additive(),
		Mode:      lc.Mode().Kind.String(),
		Appenders: lc.AppenderNames(),
	}
	if l, ok := lc.Level(); ok {
		v.Level = l.String()
	}
	if v.Name == "" {
		v.Name = "root"
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
