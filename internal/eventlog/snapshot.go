package eventlog

import (
	"encoding/json"
	"io"
	"log"

	"example.com/clocksim/internal/types"
)

// Snapshot is a point-in-time dump of a store.
type Snapshot struct {
	VM      int            `json:"vm"`
	RunID   string         `json:"run_id"`
	Records []types.Record `json:"records"`
}

// Export writes every stored record as one JSON document.
func (s *Store) Export(w io.Writer, vm int, runID string) error {
	recs, err := s.List(0, 0)
	if err != nil {
		log.Printf("[DEBUG] export list error: %v", err)
		return err
	}
	log.Printf("[DEBUG] exporting %d records for vm %d", len(recs), vm)
	return json.NewEncoder(w).Encode(Snapshot{VM: vm, RunID: runID, Records: recs})
}
