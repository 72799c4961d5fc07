package entity

import (
	"time"

	"github.com/google/uuid"
)

// Exchange is one archived question and answer.
type Exchange struct {
	Id          uuid.UUID
	SessionId   uuid.UUID
	Task        string
	Prompt      string
	Instruction string
	Reply       string
	IsError     bool
	Sent        bool
	Duration    time.Duration
	StartedAt   time.Time
	FinishedAt  time.Time
	CreatedAt   time.Time
}
