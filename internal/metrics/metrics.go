package metrics

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	docsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluitax_documents_processed_total",
			Help: "Documentos fiscais processados, por tipo, status e origem (xml/zip).",
		},
		// kind: invoice|cte|cancellation|nfse
		// status: inserted|duplicate|parse_error|db_error
		[]string{"kind", "status", "source"},
	)

	docsDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fluitax_document_process_duration_seconds",
			Help:    "Tempo de processamento de cada documento fiscal em segundos.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "status", "source"},
	)
)

// Init registra as métricas no registry global.
func Init() {
	prometheus.MustRegister(docsProcessed, docsDuration)
}

// ObserveDocument registra o resultado de um documento processado.
func ObserveDocument(kind, status, source string, d time.Duration) {
	labels := prometheus.Labels{
		"kind":   kind,
		"status": status,
		"source": source,
	}
	docsProcessed.With(labels).Inc()
	docsDuration.With(labels).Observe(d.Seconds())
}

// StartHTTPServer sobe um /metrics na porta indicada (ex: ":9101").
func StartHTTPServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		slog.Info("iniciando servidor de métricas Prometheus", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("erro no servidor de métricas", "addr", addr, "err", err)
		}
	}()
}
