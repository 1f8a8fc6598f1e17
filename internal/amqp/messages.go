package amqp

import (
	"encoding/json"
	"time"
)

// LedgerSyncMessage tells the worker a ledger entry is ready for export.
// It carries only the entry ID; the worker fetches the full entry from the
// database so stale messages never overwrite fresher state.
type LedgerSyncMessage struct {
	EntryID   int64     `json:"entry_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerSyncMessage(entryID int64) *LedgerSyncMessage {
	return &LedgerSyncMessage{
		EntryID:   entryID,
		Timestamp: time.Now(),
	}
}

func (m *LedgerSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerSyncMessageFromJSON(data []byte) (*LedgerSyncMessage, error) {
	var msg LedgerSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
