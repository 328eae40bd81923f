package model

import "time"

// ChatEvent is a usage record for one completed chat call. Events are
// published to RabbitMQ after the turn pair commits and persisted by a
// background worker, so a queue outage never loses a chat reply.
type ChatEvent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	SessionID  uint      `gorm:"not null;index" json:"session_id"`
	Mode       string    `gorm:"size:16;not null" json:"mode"`
	StageCount int       `gorm:"not null" json:"stage_count"`
	LatencyMS  int64     `gorm:"not null" json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
