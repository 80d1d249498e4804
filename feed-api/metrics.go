package main

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	SuccessfulRequests *prometheus.CounterVec
	BadRequests        *prometheus.CounterVec
	PostsCreated       prometheus.Counter
	CommentsCreated    prometheus.Counter
	LikesToggled       *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
}

// NewMetrics creates the service collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SuccessfulRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "successful_request",
				Help: "Total number of successful (2xx) HTTP requests",
			},
			[]string{"path"},
		),
		BadRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unsuccessful_request",
				Help: "Total number of unsuccessful (4xx and 5xx) HTTP requests",
			},
			[]string{"path"},
		),
		PostsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "successful_post",
				Help: "Total number of successfully created posts",
			},
		),
		CommentsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "successful_comment",
				Help: "Total number of successfully created comments",
			},
		),
		LikesToggled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "successful_like_toggle",
				Help: "Total number of like toggles by target and resulting state",
			},
			[]string{"target", "state"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	reg.MustRegister(m.SuccessfulRequests)
	reg.MustRegister(m.BadRequests)
	reg.MustRegister(m.PostsCreated)
	reg.MustRegister(m.CommentsCreated)
	reg.MustRegister(m.LikesToggled)
	reg.MustRegister(m.RequestDuration)

	return m
}

func likeState(liked bool) string {
	if liked {
		return "liked"
	}
	return "unliked"
}
