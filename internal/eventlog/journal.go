package eventlog

import (
	"log"
	"time"

	"example.com/clocksim/internal/types"
	"github.com/google/uuid"
)

// Journal is the recorder a runtime writes through. The file log is
// authoritative and its errors are returned; the store and hub are mirrors
// whose failures are only logged.
type Journal struct {
	File  *FileLog
	Store *Store // optional
	Hub   *Hub   // optional
	RunID string

	seq uint64
}

func NewJournal(file *FileLog, store *Store, hub *Hub, runID string) *Journal {
	j := &Journal{File: file, Store: store, Hub: hub, RunID: runID}
	if store != nil {
		if last, err := store.LastSeq(); err == nil {
			j.seq = last
		}
	}
	return j
}

func (j *Journal) Record(ev types.Event) error {
	if ev.Wall.IsZero() {
		ev.Wall = time.Now()
	}
	if err := j.File.Record(ev); err != nil {
		return err
	}
	if j.Store == nil && j.Hub == nil {
		return nil
	}
	j.seq++
	rec := types.Record{ID: uuid.NewString(), RunID: j.RunID, Seq: j.seq, Event: ev}
	if j.Store != nil {
		if err := j.Store.Put(rec); err != nil {
			log.Printf("[WARN] vm %d: mirror seq=%d: %v", ev.VM, rec.Seq, err)
		}
	}
	if j.Hub != nil {
		j.Hub.Publish(rec)
	}
	return nil
}

// Seq returns the last mirrored sequence number.
func (j *Journal) Seq() uint64 { return j.seq }
