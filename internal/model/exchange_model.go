package model

import (
	"time"

	"github.com/google/uuid"
)

type AssistantExchange struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId   uuid.UUID `gorm:"type:uuid;not null;index"`
	Task        string    `gorm:"type:varchar(32);not null"`
	Prompt      string    `gorm:"type:text;not null"`
	Instruction string    `gorm:"type:text"`
	Reply       string    `gorm:"type:text;not null"`
	IsError     bool      `gorm:"not null;default:false"`
	Sent        bool      `gorm:"not null;default:true"`
	DurationMs  int64     `gorm:"not null;default:0"`
	StartedAt   time.Time `gorm:"not null"`
	FinishedAt  time.Time `gorm:"not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (AssistantExchange) TableName() string {
	return "assistant_exchanges"
}
