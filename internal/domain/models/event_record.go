package models

import (
	"encoding/json"
	"time"
)

// EventRecord is the exported form of a bus event.
type EventRecord struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}
