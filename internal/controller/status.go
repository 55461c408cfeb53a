package controller

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/okdaichi/ofmesh/internal/hosts"
	"github.com/okdaichi/ofmesh/internal/southbound"
	"github.com/okdaichi/ofmesh/internal/topology"
	"github.com/okdaichi/ofmesh/internal/version"
)

// Status is the JSON body of the /health endpoint.
type Status struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
	Switches  int       `json:"switches"`
	Links     int       `json:"links"`
	Hosts     int       `json:"hosts"`
	Version   string    `json:"version"`
}

// statusHandler reports controller liveness and inventory counts.
type statusHandler struct {
	startTime time.Time
	topo      *topology.Topology
	hosts     *hosts.Table
	switches  *southbound.Registry
}

func newStatusHandler(topo *topology.Topology, table *hosts.Table, switches *southbound.Registry) *statusHandler {
	return &statusHandler{
		startTime: time.Now(),
		topo:      topo,
		hosts:     table,
		switches:  switches,
	}
}

// getStatus returns the current status snapshot.
func (h *statusHandler) getStatus() Status {
	return Status{
		Status:    "healthy",
		Timestamp: time.Now(),
		Uptime:    time.Since(h.startTime).String(),
		Switches:  h.switches.Count(),
		Links:     h.topo.LinkCount(),
		Hosts:     h.hosts.Count(),
		Version:   version.Version(),
	}
}

// ServeHTTP implements http.Handler for the health check endpoint.
func (h *statusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}
	json.NewEncoder(w).Encode(h.getStatus())
}
