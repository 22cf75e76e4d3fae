package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector собирает Prometheus-метрики платформы.
type Collector struct {
	httpStatus   *prometheus.CounterVec
	httpLatency  prometheus.Histogram
	transitions  *prometheus.CounterVec
	aiGeneration *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codequill_http_status_total",
			Help: "Количество HTTP-ответов по статус-кодам",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "codequill_http_latency_seconds",
			Help:    "Латентность HTTP-запросов (секунды)",
			Buckets: prometheus.DefBuckets,
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codequill_article_transitions_total",
			Help: "Переходы статусов статей",
		}, []string{"to"}),
		aiGeneration: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codequill_ai_generations_total",
			Help: "Запросы генерации текста",
		}, []string{"outcome"}),
	}

	reg.MustRegister(c.httpStatus, c.httpLatency, c.transitions, c.aiGeneration)
	return c
}

func (c *Collector) RecordHTTP(statusCode int, duration time.Duration) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

func (c *Collector) RecordTransition(to string) {
	c.transitions.WithLabelValues(to).Inc()
}

func (c *Collector) RecordAIGeneration(ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	c.aiGeneration.WithLabelValues(outcome).Inc()
}

// Handler отдаёт метрики из переданного реестра.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
