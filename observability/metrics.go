package observability

import "github.com/prometheus/client_golang/prometheus"

// Recorder exposes the controller's domain counters. All methods are
// no-ops on a nil Recorder or when metrics are disabled, so components
// never have to guard their instrumentation.
type Recorder struct {
	packetIns       *prometheus.CounterVec
	lldpMalformed   prometheus.Counter
	linksExpired    prometheus.Counter
	arpReplies      prometheus.Counter
	routesInstalled prometheus.Counter
	routeFailures   *prometheus.CounterVec
	flowMods        prometheus.Counter
	switches        prometheus.Gauge
}

// NewRecorder creates and registers the controller counters. When metrics
// are disabled the returned Recorder is inert.
func NewRecorder() *Recorder {
	r := &Recorder{
		packetIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ofmesh_packet_in_total",
			Help: "Packet-in events by decoded kind.",
		}, []string{"kind"}),
		lldpMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ofmesh_lldp_malformed_total",
			Help: "LLDP probes dropped as malformed.",
		}),
		linksExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ofmesh_links_expired_total",
			Help: "Links removed by the collector for staleness.",
		}),
		arpReplies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ofmesh_arp_replies_total",
			Help: "Proxy ARP replies sent.",
		}),
		routesInstalled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ofmesh_routes_installed_total",
			Help: "Bidirectional routes successfully installed.",
		}),
		routeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ofmesh_route_failures_total",
			Help: "Aborted route installations by reason.",
		}, []string{"reason"}),
		flowMods: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ofmesh_flow_mods_total",
			Help: "Flow-mod messages sent to switches.",
		}),
		switches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ofmesh_connected_switches",
			Help: "Currently connected switches.",
		}),
	}

	if !register(r.packetIns, r.lldpMalformed, r.linksExpired, r.arpReplies,
		r.routesInstalled, r.routeFailures, r.flowMods, r.switches) {
		return &Recorder{}
	}
	return r
}

// PacketIn counts one packet-in of the given kind ("lldp", "arp", "ipv4",
// "other").
func (r *Recorder) PacketIn(kind string) {
	if r == nil || r.packetIns == nil {
		return
	}
	r.packetIns.WithLabelValues(kind).Inc()
}

// LLDPMalformed counts one dropped probe.
func (r *Recorder) LLDPMalformed() {
	if r == nil || r.lldpMalformed == nil {
		return
	}
	r.lldpMalformed.Inc()
}

// LinksExpired counts links removed by the collector.
func (r *Recorder) LinksExpired(n int) {
	if r == nil || r.linksExpired == nil {
		return
	}
	r.linksExpired.Add(float64(n))
}

// ARPReplySent counts one proxy reply.
func (r *Recorder) ARPReplySent() {
	if r == nil || r.arpReplies == nil {
		return
	}
	r.arpReplies.Inc()
}

// RouteInstalled counts one completed bidirectional install.
func (r *Recorder) RouteInstalled() {
	if r == nil || r.routesInstalled == nil {
		return
	}
	r.routesInstalled.Inc()
}

// RouteFailed counts one aborted installation.
func (r *Recorder) RouteFailed(reason string) {
	if r == nil || r.routeFailures == nil {
		return
	}
	r.routeFailures.WithLabelValues(reason).Inc()
}

// FlowModsSent counts flow-mods pushed to switches.
func (r *Recorder) FlowModsSent(n int) {
	if r == nil || r.flowMods == nil {
		return
	}
	r.flowMods.Add(float64(n))
}

// SwitchConnected bumps the connected-switch gauge.
func (r *Recorder) SwitchConnected() {
	if r == nil || r.switches == nil {
		return
	}
	r.switches.Inc()
}

// SwitchDisconnected drops the connected-switch gauge.
func (r *Recorder) SwitchDisconnected() {
	if r == nil || r.switches == nil {
		return
	}
	r.switches.Dec()
}
