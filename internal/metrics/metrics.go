package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/corelock/lockstep/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters
var (
	UDPRxPackets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "udp_rx_packets_total",
		Help: "Total UDP datagrams received (post-reassembly payload count).",
	})
	UDPTxPackets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "udp_tx_packets_total",
		Help: "Total UDP datagrams sent, including fragments.",
	})
	TCPRxMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcp_rx_messages_total",
		Help: "Total handshake messages received over TCP.",
	})
	TCPTxMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcp_tx_messages_total",
		Help: "Total handshake messages sent over TCP.",
	})
	FragmentsReassembled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fragments_reassembled_total",
		Help: "Total multi-fragment UDP messages successfully reassembled.",
	})
	FragmentsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fragments_dropped_total",
		Help: "Total in-flight fragment reassemblies evicted before completion.",
	})
	FramesAuthoritative = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frames_authoritative_total",
		Help: "Total frames promoted to an authoritative state.",
	})
	FramesMissingInput = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frames_missing_input_total",
		Help: "Total per-player input slots declared authoritatively missing after the grace window.",
	})
	HubDroppedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_dropped_messages_total",
		Help: "Total broadcast messages dropped by the hub due to a slow client.",
	})
	HubKickedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_kicked_clients_total",
		Help: "Total clients disconnected due to the backpressure kick policy.",
	})
	HubRejectedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_rejected_clients_total",
		Help: "Total client connection attempts rejected because the player cap was reached.",
	})
	HubActiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_active_clients",
		Help: "Current number of connected players.",
	})
	HubBroadcastFanout = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_broadcast_fanout",
		Help: "Number of players targeted in the most recent broadcast.",
	})
	HubQueueDepthMax = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_queue_depth_max",
		Help: "Observed max queued messages among players since the last sample window.",
	})
	HubQueueDepthAvg = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_queue_depth_avg",
		Help: "Approximate average queued messages per player in the last sample.",
	})
	ClientClockErrorSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "client_clock_error_seconds",
		Help: "Most recently observed client clock alignment error, in seconds.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	MalformedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "malformed_messages_total",
		Help: "Total rejected malformed wire messages (decode failures, bad envelopes).",
	})
	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrTCPRead   = "tcp_read"
	ErrTCPWrite  = "tcp_write"
	ErrUDPRead   = "udp_read"
	ErrUDPWrite  = "udp_write"
	ErrHandshake = "handshake"
	ErrDecode    = "decode"
)

// StartHTTP serves Prometheus metrics at /metrics and readiness at /ready on
// a new mux listening on addr.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters, cheap to read without scraping Prometheus in-process.
var (
	localUDPRx       uint64
	localUDPTx       uint64
	localTCPRx       uint64
	localTCPTx       uint64
	localReassembled uint64
	localFragDropped uint64
	localAuthFrames  uint64
	localMissing     uint64
	localHubDrop     uint64
	localHubKick     uint64
	localHubReject   uint64
	localErrors      uint64
	localHubClients  uint64
	localFanout      uint64
	localMalformed   uint64
	localQDMax       uint64
	localQDAvg       uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	UDPRx          uint64
	UDPTx          uint64
	TCPRx          uint64
	TCPTx          uint64
	Reassembled    uint64
	FragmentsDrops uint64
	AuthFrames     uint64
	MissingInputs  uint64
	HubDrops       uint64
	HubKicks       uint64
	HubRejects     uint64
	Errors         uint64
	HubClients     uint64
	Fanout         uint64
	Malformed      uint64
	QueueDepthMax  uint64
	QueueDepthAvg  uint64
}

func Snap() Snapshot {
	return Snapshot{
		UDPRx:          atomic.LoadUint64(&localUDPRx),
		UDPTx:          atomic.LoadUint64(&localUDPTx),
		TCPRx:          atomic.LoadUint64(&localTCPRx),
		TCPTx:          atomic.LoadUint64(&localTCPTx),
		Reassembled:    atomic.LoadUint64(&localReassembled),
		FragmentsDrops: atomic.LoadUint64(&localFragDropped),
		AuthFrames:     atomic.LoadUint64(&localAuthFrames),
		MissingInputs:  atomic.LoadUint64(&localMissing),
		HubDrops:       atomic.LoadUint64(&localHubDrop),
		HubKicks:       atomic.LoadUint64(&localHubKick),
		HubRejects:     atomic.LoadUint64(&localHubReject),
		Errors:         atomic.LoadUint64(&localErrors),
		HubClients:     atomic.LoadUint64(&localHubClients),
		Fanout:         atomic.LoadUint64(&localFanout),
		Malformed:      atomic.LoadUint64(&localMalformed),
		QueueDepthMax:  atomic.LoadUint64(&localQDMax),
		QueueDepthAvg:  atomic.LoadUint64(&localQDAvg),
	}
}

func IncUDPRx() {
	UDPRxPackets.Inc()
	atomic.AddUint64(&localUDPRx, 1)
}

func AddUDPTx(n int) {
	UDPTxPackets.Add(float64(n))
	atomic.AddUint64(&localUDPTx, uint64(n))
}

func IncTCPRx() {
	TCPRxMessages.Inc()
	atomic.AddUint64(&localTCPRx, 1)
}

func IncTCPTx() {
	TCPTxMessages.Inc()
	atomic.AddUint64(&localTCPTx, 1)
}

func IncReassembled() {
	FragmentsReassembled.Inc()
	atomic.AddUint64(&localReassembled, 1)
}

func IncFragmentDropped() {
	FragmentsDropped.Inc()
	atomic.AddUint64(&localFragDropped, 1)
}

func IncAuthoritativeFrame() {
	FramesAuthoritative.Inc()
	atomic.AddUint64(&localAuthFrames, 1)
}

func IncMissingInput() {
	FramesMissingInput.Inc()
	atomic.AddUint64(&localMissing, 1)
}

func IncHubDrop() {
	HubDroppedMessages.Inc()
	atomic.AddUint64(&localHubDrop, 1)
}

func IncHubKick() {
	HubKickedClients.Inc()
	atomic.AddUint64(&localHubKick, 1)
}

func IncHubReject() {
	HubRejectedClients.Inc()
	atomic.AddUint64(&localHubReject, 1)
}

func SetHubClients(n int) {
	HubActiveClients.Set(float64(n))
	atomic.StoreUint64(&localHubClients, uint64(n))
}

func SetBroadcastFanout(n int) {
	HubBroadcastFanout.Set(float64(n))
	atomic.StoreUint64(&localFanout, uint64(n))
}

func SetClientClockError(seconds float64) {
	ClientClockErrorSeconds.Set(seconds)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

func IncMalformed() {
	MalformedMessages.Inc()
	atomic.AddUint64(&localMalformed, 1)
}

// SetQueueDepth records a snapshot of max and avg queue depth.
func SetQueueDepth(max, avg int) {
	HubQueueDepthMax.Set(float64(max))
	HubQueueDepthAvg.Set(float64(avg))
	atomic.StoreUint64(&localQDMax, uint64(max))
	atomic.StoreUint64(&localQDAvg, uint64(avg))
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{ErrTCPRead, ErrTCPWrite, ErrUDPRead, ErrUDPWrite, ErrHandshake, ErrDecode} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
