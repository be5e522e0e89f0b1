// Package metrics collects Prometheus counters for study activity.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the surface used by services and middleware.
type Recorder interface {
	RecordHTTPRequest(method string, status int)
	RecordFlashcardReview(correct bool)
	RecordRoomJoin(outcome string)
	RecordStudyMinutes(minutes int)
	RecordAICompletion(kind string, ok bool)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	httpRequests     *prometheus.CounterVec
	flashcardReviews *prometheus.CounterVec
	roomJoins        *prometheus.CounterVec
	studyMinutes     prometheus.Counter
	aiCompletions    *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studybuddy_http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
		flashcardReviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studybuddy_flashcard_reviews_total",
			Help: "Flashcard reviews by result.",
		}, []string{"result"}),
		roomJoins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studybuddy_room_joins_total",
			Help: "Room join attempts by outcome.",
		}, []string{"outcome"}),
		studyMinutes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studybuddy_study_minutes_total",
			Help: "Minutes credited by ended study sessions.",
		}),
		aiCompletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studybuddy_ai_completions_total",
			Help: "AI completion calls by conversation type and outcome.",
		}, []string{"kind", "outcome"}),
	}

	reg.MustRegister(c.httpRequests, c.flashcardReviews, c.roomJoins, c.studyMinutes, c.aiCompletions)
	return c
}

func (c *Collector) RecordHTTPRequest(method string, status int) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func (c *Collector) RecordFlashcardReview(correct bool) {
	result := "incorrect"
	if correct {
		result = "correct"
	}
	c.flashcardReviews.WithLabelValues(result).Inc()
}

func (c *Collector) RecordRoomJoin(outcome string) {
	c.roomJoins.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordStudyMinutes(minutes int) {
	if minutes > 0 {
		c.studyMinutes.Add(float64(minutes))
	}
}

func (c *Collector) RecordAICompletion(kind string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "fallback"
	}
	c.aiCompletions.WithLabelValues(kind, outcome).Inc()
}

// Handler serves the scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
