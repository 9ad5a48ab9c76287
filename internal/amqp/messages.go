package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Reasons a sync pass was requested.
const (
	ReasonEnqueued = "enqueued"
	ReasonOnline   = "online"
	ReasonManual   = "manual"
)

// SyncRequestMessage asks a worker to replay the offline queue. It carries
// no mutation data; the queue itself is the source of truth.
type SyncRequestMessage struct {
	Reason    string    `json:"reason"`
	Queued    int       `json:"queued"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSyncRequestMessage(reason string, queued int) *SyncRequestMessage {
	return &SyncRequestMessage{
		Reason:    reason,
		Queued:    queued,
		Timestamp: time.Now().UTC(),
	}
}

func (m *SyncRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncRequestMessageFromJSON decodes a message and rejects ones without a
// reason.
func SyncRequestMessageFromJSON(data []byte) (*SyncRequestMessage, error) {
	var msg SyncRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Reason == "" {
		return nil, fmt.Errorf("sync request without reason")
	}
	return &msg, nil
}
