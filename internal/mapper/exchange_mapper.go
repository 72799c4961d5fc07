package mapper

import (
	"time"

	"metabolite-assistant-be/internal/entity"
	"metabolite-assistant-be/internal/model"
	"metabolite-assistant-be/pkg/chat"

	"github.com/google/uuid"
)

type ExchangeMapper struct{}

func NewExchangeMapper() *ExchangeMapper {
	return &ExchangeMapper{}
}

func (m *ExchangeMapper) ExchangeToEntity(e *model.AssistantExchange) *entity.Exchange {
	if e == nil {
		return nil
	}

	return &entity.Exchange{
		Id:          e.Id,
		SessionId:   e.SessionId,
		Task:        e.Task,
		Prompt:      e.Prompt,
		Instruction: e.Instruction,
		Reply:       e.Reply,
		IsError:     e.IsError,
		Sent:        e.Sent,
		Duration:    time.Duration(e.DurationMs) * time.Millisecond,
		StartedAt:   e.StartedAt,
		FinishedAt:  e.FinishedAt,
		CreatedAt:   e.CreatedAt,
	}
}

func (m *ExchangeMapper) ExchangeToModel(e *entity.Exchange) *model.AssistantExchange {
	if e == nil {
		return nil
	}

	return &model.AssistantExchange{
		Id:          e.Id,
		SessionId:   e.SessionId,
		Task:        e.Task,
		Prompt:      e.Prompt,
		Instruction: e.Instruction,
		Reply:       e.Reply,
		IsError:     e.IsError,
		Sent:        e.Sent,
		DurationMs:  e.Duration.Milliseconds(),
		StartedAt:   e.StartedAt,
		FinishedAt:  e.FinishedAt,
		CreatedAt:   e.CreatedAt,
	}
}

func (m *ExchangeMapper) ExchangesToEntities(models []*model.AssistantExchange) []*entity.Exchange {
	out := make([]*entity.Exchange, 0, len(models))
	for _, e := range models {
		out = append(out, m.ExchangeToEntity(e))
	}
	return out
}

// OutcomeToEntity turns a settled exchange into an archive record.
func (m *ExchangeMapper) OutcomeToEntity(o *chat.Outcome) *entity.Exchange {
	if o == nil {
		return nil
	}

	return &entity.Exchange{
		Id:          uuid.New(),
		SessionId:   o.SessionId,
		Task:        string(o.Task),
		Prompt:      o.Prompt,
		Instruction: o.Instruction,
		Reply:       o.Reply.Reply,
		IsError:     o.Reply.Error,
		Sent:        o.Sent,
		Duration:    o.Duration(),
		StartedAt:   o.StartedAt,
		FinishedAt:  o.FinishedAt,
		CreatedAt:   o.FinishedAt,
	}
}
