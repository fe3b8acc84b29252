package model

import "time"

// RawMessage is the durable append-only copy of an inbound payload, written
// before any parsing so every message is replayable.
type RawMessage struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"column:message_key;uniqueIndex;not null" json:"message_key"`
	Payload    string    `gorm:"column:payload;not null" json:"payload"`
	ReceivedAt time.Time `gorm:"column:received_at;autoCreateTime" json:"received_at"`
}

func (RawMessage) TableName() string {
	return "json_docs"
}
