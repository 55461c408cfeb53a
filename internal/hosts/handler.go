package hosts

import (
	"encoding/json"
	"net/http"
)

// hostView is the JSON shape of one host record.
type hostView struct {
	DPID uint64 `json:"dpid"`
	Port uint16 `json:"port"`
	MAC  string `json:"mac"`
	IP   string `json:"ip"`
}

// ListHandlerFunc serves GET /hosts: every learned host location in
// insertion order.
func ListHandlerFunc(table *Table) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		records := table.Snapshot()
		views := make([]hostView, 0, len(records))
		for _, rec := range records {
			views = append(views, hostView{
				DPID: rec.DPID,
				Port: rec.Port,
				MAC:  rec.MAC.String(),
				IP:   rec.IP.String(),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"hosts": views,
			"count": len(views),
		})
	}
}
