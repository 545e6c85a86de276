package metrics

import (
	"net/http"
	"time"

	"github.com/maltedev/price-tracker/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const outcomeSuccess = "success"

// Registry holds the tracker's collectors on a private prometheus registry.
// It satisfies scraper.Recorder and database.RelayRecorder.
type Registry struct {
	reg          *prometheus.Registry
	ScrapeTotal  *prometheus.CounterVec
	FetchSeconds *prometheus.HistogramVec
	FetchErrors  *prometheus.CounterVec
	Published    *prometheus.CounterVec
	PriceDrops   prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	scrapes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "price_tracker_scrape_total",
		Help: "Scrape outcomes by site and result kind.",
	}, []string{"site", "outcome"})
	fetchSeconds := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "price_tracker_fetch_seconds",
		Help:    "Page fetch latency.",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"site"})
	fetchErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "price_tracker_fetch_errors_total",
		Help: "Failed page fetches by site.",
	}, []string{"site"})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "price_tracker_outbox_published_total",
		Help: "Outbox publish attempts by event type and result.",
	}, []string{"event_type", "result"})
	drops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "price_tracker_price_drops_total",
		Help: "Price drops detected while tracking.",
	})

	r.MustRegister(scrapes, fetchSeconds, fetchErrors, published, drops)
	return &Registry{
		reg:          r,
		ScrapeTotal:  scrapes,
		FetchSeconds: fetchSeconds,
		FetchErrors:  fetchErrors,
		Published:    published,
		PriceDrops:   drops,
	}
}

func (r *Registry) ObserveFetch(site models.Site, elapsed time.Duration, err error) {
	r.FetchSeconds.WithLabelValues(string(site)).Observe(elapsed.Seconds())
	if err != nil {
		r.FetchErrors.WithLabelValues(string(site)).Inc()
	}
}

func (r *Registry) ObserveResult(site models.Site, result models.ScrapeResult) {
	outcome := outcomeSuccess
	if !result.Success && result.Error != nil {
		outcome = string(result.Error.Kind)
	}
	r.ScrapeTotal.WithLabelValues(string(site), outcome).Inc()
}

func (r *Registry) ObservePublish(eventType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.Published.WithLabelValues(eventType, result).Inc()
}

func (r *Registry) ObservePriceDrop() {
	r.PriceDrops.Inc()
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
