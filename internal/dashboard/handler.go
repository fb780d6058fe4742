package dashboard

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"

	"github.com/champschool/champdesk/internal/schema"
	"github.com/champschool/champdesk/internal/status"
	"github.com/champschool/champdesk/internal/store"
)

// TableCounts reports per-table record totals for the console.
type TableCounts struct {
	Table   string `json:"table"`
	Total   int    `json:"total"`
	Pending int    `json:"pending"`
}

// CountsFunc supplies per-table counts. The store provides one; tests can
// supply their own.
type CountsFunc func(r *http.Request) ([]TableCounts, error)

// StoreCounts builds a CountsFunc over the local mirror.
func StoreCounts(st *store.Store) CountsFunc {
	return func(r *http.Request) ([]TableCounts, error) {
		counts := make([]TableCounts, 0, len(schema.Tables))
		for _, tbl := range schema.Tables {
			total, err := st.Count(r.Context(), tbl.Name)
			if err != nil {
				return nil, err
			}
			pending, err := st.PendingCountTable(r.Context(), tbl.Name)
			if err != nil {
				return nil, err
			}
			counts = append(counts, TableCounts{Table: tbl.Name, Total: total, Pending: pending})
		}
		return counts, nil
	}
}

type handler struct {
	broadcaster *status.Broadcaster
	counts      CountsFunc
	logger      *log.Logger
}

func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := h.broadcaster.Snapshot(r.Context())
	if err != nil {
		h.logger.Printf("Status snapshot failed: %v", err)
		http.Error(w, "failed to read status", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

func (h *handler) handleTables(w http.ResponseWriter, r *http.Request) {
	if h.counts == nil {
		http.Error(w, "table counts unavailable", http.StatusNotImplemented)
		return
	}

	counts, err := h.counts(r)
	if err != nil {
		h.logger.Printf("Table counts failed: %v", err)
		http.Error(w, "failed to count tables", http.StatusInternalServerError)
		return
	}

	sort.Slice(counts, func(i, j int) bool { return counts[i].Table < counts[j].Table })

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"tables": counts})
}
