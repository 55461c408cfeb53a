package topology

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"
)

// GraphResponse is the JSON shape of the /graph debug endpoint.
type GraphResponse struct {
	Nodes []NodeResponse `json:"nodes"`
	Links []LinkResponse `json:"links"`
}

// NodeResponse is one switch in the graph response.
type NodeResponse struct {
	DPID   uint64     `json:"dpid"`
	LinkTo []PortLink `json:"link_to"`
}

// LinkResponse is one link in the graph response.
type LinkResponse struct {
	A          uint64  `json:"a"`
	B          uint64  `json:"b"`
	AgeSeconds float64 `json:"age_seconds"`
}

// Response builds a stable, sorted snapshot of the graph for the debug
// API.
func (t *Topology) Response() GraphResponse {
	t.mu.RLock()
	defer t.mu.RUnlock()

	t.init()

	resp := GraphResponse{
		Nodes: make([]NodeResponse, 0, len(t.graph.nodes)),
		Links: make([]LinkResponse, 0, len(t.graph.links)),
	}

	now := time.Now()
	for _, n := range t.graph.nodes {
		resp.Nodes = append(resp.Nodes, NodeResponse{
			DPID:   n.DPID,
			LinkTo: append([]PortLink(nil), n.LinkTo...),
		})
	}
	for _, l := range t.graph.links {
		resp.Links = append(resp.Links, LinkResponse{
			A:          l.A,
			B:          l.B,
			AgeSeconds: now.Sub(l.LastSeen).Seconds(),
		})
	}

	sort.Slice(resp.Nodes, func(i, j int) bool { return resp.Nodes[i].DPID < resp.Nodes[j].DPID })
	sort.Slice(resp.Links, func(i, j int) bool {
		if resp.Links[i].A != resp.Links[j].A {
			return resp.Links[i].A < resp.Links[j].A
		}
		return resp.Links[i].B < resp.Links[j].B
	})

	return resp
}

// GraphHandlerFunc serves GET /graph: the current topology snapshot.
func GraphHandlerFunc(topo *Topology) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(topo.Response())
	}
}

// routeResponse is the JSON shape of the /route debug endpoint.
type routeResponse struct {
	From uint64   `json:"from"`
	To   uint64   `json:"to"`
	Path []uint64 `json:"path"`
	Hops int      `json:"hops"`
}

// RouteHandlerFunc serves GET /route?from=<dpid>&to=<dpid>: a dry-run path
// computation over the live graph.
func RouteHandlerFunc(topo *Topology) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		from, errFrom := strconv.ParseUint(r.URL.Query().Get("from"), 10, 64)
		to, errTo := strconv.ParseUint(r.URL.Query().Get("to"), 10, 64)
		if errFrom != nil || errTo != nil {
			jsonError(w, http.StatusBadRequest, "'from' and 'to' query parameters must be dpids")
			return
		}

		path, err := topo.ShortestPath(from, to)
		if err != nil {
			jsonError(w, http.StatusNotFound, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(routeResponse{
			From: from,
			To:   to,
			Path: path,
			Hops: len(path) - 1,
		})
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
