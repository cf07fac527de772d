package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/calibration-tracker/internal/config"
	"github.com/kirillkom/calibration-tracker/internal/core/domain"
	"github.com/kirillkom/calibration-tracker/internal/core/ports"
	"github.com/kirillkom/calibration-tracker/internal/observability/metrics"
)

const (
	serviceName          = "api"
	defaultUploadMaxMB   = 64
	multipartMemoryBytes = 32 << 20
	backpressureWait     = 2 * time.Second
	defaultUnmatchedList = 100
)

type Router struct {
	cfg          config.Config
	certificates ports.CertificateImporter
	legacy       ports.LegacyImporter
	linker       ports.CertificateLinker
	tools        ports.ToolRegistry
	reporter     ports.BatchReporter
	batches      ports.BatchResults
	metrics      *metrics.HTTPServerMetrics
	logger       *slog.Logger
}

func NewRouter(
	cfg config.Config,
	certificates ports.CertificateImporter,
	legacy ports.LegacyImporter,
	linker ports.CertificateLinker,
	tools ports.ToolRegistry,
	reporter ports.BatchReporter,
	batches ports.BatchResults,
) *Router {
	return &Router{
		cfg:          cfg,
		certificates: certificates,
		legacy:       legacy,
		linker:       linker,
		tools:        tools,
		reporter:     reporter,
		batches:      batches,
		logger:       slog.Default(),
	}
}

func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) WithLogger(logger *slog.Logger) *Router {
	if logger != nil {
		rt.logger = logger
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware(rt.logger))
	if rt.metrics != nil {
		r.Use(func(next http.Handler) http.Handler {
			return rt.metrics.Middleware(serviceName, next)
		})
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	r.Get("/healthz", rt.healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rt.uploadGate)
			r.Post("/imports/certificates", rt.importCertificates)
			r.Post("/imports/legacy", rt.importLegacy)
		})
		r.Get("/imports/certificates/{batchID}/report", rt.batchReport)

		r.Get("/certificates/unmatched", rt.listUnmatched)
		r.Post("/certificates/link", rt.linkCertificate)

		r.Post("/tools", rt.createTool)
		r.Post("/tools/lookup", rt.lookupTools)
		r.Get("/tools/{id}", rt.getTool)
		r.Delete("/tools/{id}", rt.deleteTool)
		r.Patch("/tools/{id}/status", rt.changeStatus)
		r.Post("/tools/{id}/backup", rt.moveToBackup)
		r.Post("/tools/{id}/restore", rt.restoreTool)
		r.Post("/tools/{id}/calibrations", rt.logCalibration)

		r.Get("/alerts", rt.alerts)
	})
	return r
}

// uploadGate throttles the import endpoints, which do the heavy document work.
func (rt *Router) uploadGate(next http.Handler) http.Handler {
	h := backpressureMiddleware(next, rt.cfg.APIMaxInFlight, backpressureWait, rt.recordReject)
	return rateLimitMiddleware(h, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.recordReject)
}

func (rt *Router) recordReject(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordThrottled(serviceName, reason)
	}
}

func (rt *Router) uploadLimit() int64 {
	mb := rt.cfg.UploadMaxMB
	if mb <= 0 {
		mb = defaultUploadMaxMB
	}
	return int64(mb) << 20
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		rt.logger.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request", err)
	}
	return nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func formBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(r.FormValue(key)))
	return err == nil && v
}

// parseDay accepts a calendar date or an RFC 3339 timestamp.
func parseDay(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, time.UTC); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse "+field, errors.New("expected YYYY-MM-DD"))
	}
	d := domain.DateOf(t)
	return &d, nil
}
