package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChannelState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "feedsync_channel_state",
		Help: "Current channel state (0=idle 1=connecting 2=open 3=closing 4=closed)",
	}, []string{"channel"})

	Reconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_reconnects_total",
		Help: "Reconnect attempts scheduled after a failure",
	}, []string{"channel"})

	Frames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_frames_total",
		Help: "Inbound frames by event type",
	}, []string{"channel", "type"})

	MalformedFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_malformed_frames_total",
		Help: "Inbound frames discarded as unparseable",
	}, []string{"channel"})

	Polls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_polls_total",
		Help: "Polling fallback fetches",
	}, []string{"resource"})

	FetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_fetch_failures_total",
		Help: "Failed resource fetches",
	}, []string{"resource"})

	CacheOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_cache_ops_total",
		Help: "Persistent cache operations by result",
	}, []string{"op", "result"})

	RenderSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_render_skips_total",
		Help: "Refreshes skipped because the signature was unchanged",
	}, []string{"resource"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
