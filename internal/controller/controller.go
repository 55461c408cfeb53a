// Package controller assembles the SDN controller core: it wires the
// discovery engine, the ARP proxy, and the reactive router onto one
// southbound mux, owns the shared graph and host table, and serves the
// read-only admin plane.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/okdaichi/ofmesh/internal/arpproxy"
	"github.com/okdaichi/ofmesh/internal/discovery"
	"github.com/okdaichi/ofmesh/internal/hosts"
	"github.com/okdaichi/ofmesh/internal/routing"
	"github.com/okdaichi/ofmesh/internal/southbound"
	"github.com/okdaichi/ofmesh/internal/topology"
	"github.com/okdaichi/ofmesh/observability"
)

// Config carries the controller-wide settings.
type Config struct {
	// ListenAddr is the admin-plane HTTP address.
	ListenAddr string

	// ControllerMAC is the fixed L2 identity used in ARP replies and as
	// the fallback LLDP source.
	ControllerMAC net.HardwareAddr

	// LLDPTTL is the probe period and the base unit of link freshness.
	LLDPTTL time.Duration

	// FlowIdleTimeout is stamped on every reactively installed flow.
	FlowIdleTimeout time.Duration

	// ClearFlowsOnConnect wipes a switch's flow table on handshake.
	ClearFlowsOnConnect bool

	// InjectTriggerPacket re-emits the packet that triggered a route
	// along the fresh path.
	InjectTriggerPacket bool

	// StaticHosts seeds the host table at startup, for bring-up without
	// ARP discovery.
	StaticHosts []hosts.Record
}

// Controller is the assembled core.
type Controller struct {
	cfg Config

	topo     *topology.Topology
	hosts    *hosts.Table
	switches *southbound.Registry
	mux      *southbound.Mux
	engine   *discovery.Engine
	status   *statusHandler
}

// New builds a controller from cfg, applying defaults for zero fields.
func New(cfg Config) *Controller {
	if len(cfg.ControllerMAC) != 6 {
		cfg.ControllerMAC = arpproxy.DefaultControllerMAC
	}
	if cfg.LLDPTTL <= 0 {
		cfg.LLDPTTL = discovery.DefaultLLDPTTL
	}
	if cfg.FlowIdleTimeout <= 0 {
		cfg.FlowIdleTimeout = routing.DefaultIdleTimeout
	}

	topo := &topology.Topology{}
	table := hosts.NewTable()
	switches := southbound.NewRegistry()
	rec := observability.NewRecorder()

	if n := table.Seed(cfg.StaticHosts); n > 0 {
		slog.Info("host table seeded", "records", n)
	}

	engine := discovery.New(discovery.Config{
		ControllerMAC:       cfg.ControllerMAC,
		LLDPTTL:             cfg.LLDPTTL,
		ClearFlowsOnConnect: cfg.ClearFlowsOnConnect,
	}, topo, table, rec)

	responder := arpproxy.New(cfg.ControllerMAC, rec)

	router := routing.New(topo, table, switches, rec)
	router.IdleTimeout = cfg.FlowIdleTimeout
	router.InjectTrigger = cfg.InjectTriggerPacket

	c := &Controller{
		cfg:      cfg,
		topo:     topo,
		hosts:    table,
		switches: switches,
		mux:      southbound.NewMux(),
		engine:   engine,
		status:   newStatusHandler(topo, table, switches),
	}

	// The tracker keeps the registry current; the components then see
	// every event in discovery, arp, routing order.
	c.mux.Register("switches", &connTracker{switches: switches, rec: rec})
	c.mux.Register("discovery", engine)
	c.mux.Register("arp", responder)
	c.mux.Register("routing", router)

	return c
}

// Southbound returns the mux the external OpenFlow stack feeds decoded
// events into. This is the controller's single bootstrap surface.
func (c *Controller) Southbound() *southbound.Mux {
	return c.mux
}

// Run starts the link collector and the admin plane, then blocks until
// ctx is canceled.
func (c *Controller) Run(ctx context.Context) error {
	go c.engine.RunLinkCollector(ctx)

	httpMux := http.NewServeMux()
	httpMux.HandleFunc("/graph", topology.GraphHandlerFunc(c.topo))
	httpMux.HandleFunc("/route", topology.RouteHandlerFunc(c.topo))
	httpMux.HandleFunc("/hosts", hosts.ListHandlerFunc(c.hosts))
	httpMux.Handle("/health", c.status)
	httpMux.Handle("/metrics", observability.Handler())

	httpServer := &http.Server{
		Addr:    c.cfg.ListenAddr,
		Handler: httpMux,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("controller started", "admin_addr", c.cfg.ListenAddr,
		"controller_mac", c.cfg.ControllerMAC, "lldp_ttl", c.cfg.LLDPTTL)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down controller")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("admin server shutdown", "error", err)
	}
	return nil
}

// connTracker mirrors connection lifecycle events into the switch
// registry before the components run.
type connTracker struct {
	switches *southbound.Registry
	rec      *observability.Recorder
}

func (t *connTracker) HandleEvent(ev southbound.Event) {
	switch ev := ev.(type) {
	case southbound.ConnectionUp:
		t.switches.Add(ev.DPID, len(ev.Ports), ev.Conn)
		t.rec.SwitchConnected()
		slog.Info("switch connected", "dpid", ev.DPID, "ports", len(ev.Ports))
	case southbound.ConnectionDown:
		t.switches.Remove(ev.DPID)
		t.rec.SwitchDisconnected()
	}
}
