package service

import (
	"context"
	"fmt"
	"sync"

	"metabolite-assistant-be/internal/constant"
	"metabolite-assistant-be/internal/dto"
	"metabolite-assistant-be/internal/entity"
	"metabolite-assistant-be/internal/mapper"
	"metabolite-assistant-be/internal/pkg/logger"
	"metabolite-assistant-be/internal/pkg/serverutils"
	"metabolite-assistant-be/internal/repository/contract"
	"metabolite-assistant-be/internal/repository/memory"
	"metabolite-assistant-be/pkg/assistant"
	"metabolite-assistant-be/pkg/chat"
	"metabolite-assistant-be/pkg/snapshot"

	"github.com/google/uuid"
)

type UIAction string

const (
	UIActionOpen       UIAction = "open"
	UIActionClose      UIAction = "close"
	UIActionToggle     UIAction = "toggle"
	UIActionShowTyping UIAction = "show_typing"
	UIActionHideTyping UIAction = "hide_typing"
)

type IAssistantService interface {
	CreateSession(ctx context.Context, req *dto.CreateSessionRequest) (*dto.SessionResponse, error)
	GetSession(ctx context.Context, id uuid.UUID) (*dto.SessionResponse, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	SessionExists(id uuid.UUID) bool

	UpdateState(ctx context.Context, id uuid.UUID, state snapshot.HostState) (*snapshot.DashboardSnapshot, error)
	GetSnapshot(ctx context.Context, id uuid.UUID) (*snapshot.DashboardSnapshot, error)

	ChangeUI(ctx context.Context, id uuid.UUID, action UIAction) (*dto.UIStateResponse, error)
	AppendMessage(ctx context.Context, id uuid.UUID, role chat.Role, req *dto.AppendMessageRequest) (*dto.MessageResponse, error)
	ClearTranscript(ctx context.Context, id uuid.UUID) (*dto.SessionResponse, error)

	SendMessage(ctx context.Context, id uuid.UUID, req *dto.SendMessageRequest) (*dto.ExchangeResultResponse, error)
	RunTask(ctx context.Context, id uuid.UUID, task assistant.TaskKind, req *dto.TaskRequest) (*dto.ExchangeResultResponse, error)
	ListExchanges(ctx context.Context, id uuid.UUID, query *dto.ExchangeListQuery) (*dto.ExchangeListResponse, error)

	// Shutdown waits for background exchanges or until ctx is done.
	Shutdown(ctx context.Context) error
}

type assistantService struct {
	sessionRepo    *memory.SessionRepository
	exchangeRepo   contract.ExchangeRepository
	orchestrator   *chat.Orchestrator
	exchangeEvents IExchangeEventService
	logger         logger.ILogger

	mapper         *mapper.AssistantMapper
	exchangeMapper *mapper.ExchangeMapper

	// baseCtx outlives requests; background exchanges run under it.
	baseCtx context.Context
	wg      sync.WaitGroup
}

func NewAssistantService(
	baseCtx context.Context,
	sessionRepo *memory.SessionRepository,
	exchangeRepo contract.ExchangeRepository,
	orchestrator *chat.Orchestrator,
	exchangeEvents IExchangeEventService,
	log logger.ILogger,
) IAssistantService {
	return &assistantService{
		sessionRepo:    sessionRepo,
		exchangeRepo:   exchangeRepo,
		orchestrator:   orchestrator,
		exchangeEvents: exchangeEvents,
		logger:         log,
		mapper:         mapper.NewAssistantMapper(),
		exchangeMapper: mapper.NewExchangeMapper(),
		baseCtx:        baseCtx,
	}
}

func (s *assistantService) CreateSession(ctx context.Context, req *dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	store := snapshot.NewStore()
	if req != nil && req.State != nil {
		store.Replace(*req.State)
	}

	record := &memory.SessionRecord{Session: chat.NewSession(store), State: store}
	s.sessionRepo.Save(record)

	s.logger.Info(constant.LogModuleAssistantService, "Session created", map[string]interface{}{
		"session_id": record.Session.Id.String(),
	})
	s.exchangeEvents.SessionCreated(ctx, record.Session.Id)

	return s.mapper.SessionToResponse(record.Session), nil
}

func (s *assistantService) GetSession(ctx context.Context, id uuid.UUID) (*dto.SessionResponse, error) {
	record, err := s.find(id)
	if err != nil {
		return nil, err
	}
	return s.mapper.SessionToResponse(record.Session), nil
}

func (s *assistantService) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if _, err := s.find(id); err != nil {
		return err
	}
	s.sessionRepo.Delete(id)

	if err := s.exchangeRepo.DeleteBySessionId(ctx, id); err != nil {
		return fmt.Errorf("delete exchanges of session %s: %w", id, err)
	}

	s.logger.Info(constant.LogModuleAssistantService, "Session deleted", map[string]interface{}{"session_id": id.String()})
	s.exchangeEvents.SessionDeleted(ctx, id)
	return nil
}

func (s *assistantService) SessionExists(id uuid.UUID) bool {
	_, ok := s.sessionRepo.Get(id)
	return ok
}

func (s *assistantService) UpdateState(ctx context.Context, id uuid.UUID, state snapshot.HostState) (*snapshot.DashboardSnapshot, error) {
	record, err := s.find(id)
	if err != nil {
		return nil, err
	}
	record.State.Replace(state)

	snap := snapshot.BuildSnapshot(state)
	return &snap, nil
}

func (s *assistantService) GetSnapshot(ctx context.Context, id uuid.UUID) (*snapshot.DashboardSnapshot, error) {
	record, err := s.find(id)
	if err != nil {
		return nil, err
	}

	snap := snapshot.BuildSnapshot(record.State.Current())
	return &snap, nil
}

func (s *assistantService) ChangeUI(ctx context.Context, id uuid.UUID, action UIAction) (*dto.UIStateResponse, error) {
	record, err := s.find(id)
	if err != nil {
		return nil, err
	}

	var ui chat.UIState
	switch action {
	case UIActionOpen:
		ui = s.orchestrator.OpenPanel(record.Session)
	case UIActionClose:
		ui = s.orchestrator.ClosePanel(record.Session)
	case UIActionToggle:
		ui = s.orchestrator.TogglePanel(record.Session)
	case UIActionShowTyping:
		ui = s.orchestrator.ShowTyping(record.Session)
	case UIActionHideTyping:
		ui = s.orchestrator.HideTyping(record.Session)
	default:
		return nil, serverutils.NewAppError(400, fmt.Sprintf("unknown ui action %q", action), nil)
	}

	res := s.mapper.UIStateToResponse(ui)
	return &res, nil
}

func (s *assistantService) AppendMessage(ctx context.Context, id uuid.UUID, role chat.Role, req *dto.AppendMessageRequest) (*dto.MessageResponse, error) {
	record, err := s.find(id)
	if err != nil {
		return nil, err
	}

	var msg chat.Message
	switch role {
	case chat.RoleUser:
		msg = s.orchestrator.AppendUserMessage(record.Session, req.Text)
	case chat.RoleAssistant:
		msg = s.orchestrator.AppendAssistantMessage(record.Session, req.Text)
	default:
		return nil, serverutils.NewAppError(400, fmt.Sprintf("unknown role %q", role), nil)
	}

	res := s.mapper.MessageToResponse(msg)
	return &res, nil
}

func (s *assistantService) ClearTranscript(ctx context.Context, id uuid.UUID) (*dto.SessionResponse, error) {
	record, err := s.find(id)
	if err != nil {
		return nil, err
	}
	s.orchestrator.ClearTranscript(record.Session)
	return s.mapper.SessionToResponse(record.Session), nil
}

func (s *assistantService) SendMessage(ctx context.Context, id uuid.UUID, req *dto.SendMessageRequest) (*dto.ExchangeResultResponse, error) {
	return s.execute(ctx, id, assistant.TaskChat, req.Message, req.State, req.Async)
}

func (s *assistantService) RunTask(ctx context.Context, id uuid.UUID, task assistant.TaskKind, req *dto.TaskRequest) (*dto.ExchangeResultResponse, error) {
	if task == assistant.TaskChat || !task.Valid() {
		return nil, serverutils.NewAppError(400, fmt.Sprintf("unknown task %q", task), nil)
	}
	if req == nil {
		req = &dto.TaskRequest{}
	}
	return s.execute(ctx, id, task, "", req.State, req.Async)
}

func (s *assistantService) execute(
	ctx context.Context,
	id uuid.UUID,
	task assistant.TaskKind,
	text string,
	state *snapshot.HostState,
	async bool,
) (*dto.ExchangeResultResponse, error) {
	record, err := s.find(id)
	if err != nil {
		return nil, err
	}
	if state != nil {
		record.State.Replace(*state)
	}

	pending, err := s.orchestrator.Prepare(record.Session, task, text)
	if err != nil {
		return nil, fmt.Errorf("start %s exchange: %w", task, err)
	}
	if pending == nil {
		return &dto.ExchangeResultResponse{Session: s.mapper.SessionToResponse(record.Session)}, nil
	}

	if async {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.archive(s.baseCtx, pending.Run(s.baseCtx))
		}()
		return &dto.ExchangeResultResponse{
			Accepted: true,
			Session:  s.mapper.SessionToResponse(record.Session),
		}, nil
	}

	exchange := s.archive(ctx, pending.Run(ctx))
	res := s.mapper.ExchangeToResponse(exchange)
	return &dto.ExchangeResultResponse{
		Exchange: &res,
		Session:  s.mapper.SessionToResponse(record.Session),
	}, nil
}

// archive stores and announces a settled exchange. Failures here are logged
// only; the transcript already holds the reply.
func (s *assistantService) archive(ctx context.Context, out *chat.Outcome) *entity.Exchange {
	exchange := s.exchangeMapper.OutcomeToEntity(out)
	ctx = context.WithoutCancel(ctx)

	if err := s.exchangeRepo.Create(ctx, exchange); err != nil {
		s.logger.Error(constant.LogModuleAssistantService, "Failed to archive exchange", map[string]interface{}{
			"session_id": exchange.SessionId.String(),
			"error":      err.Error(),
		})
	}

	s.logger.Info(constant.LogModuleAssistantService, "Exchange settled", map[string]interface{}{
		"session_id":  exchange.SessionId.String(),
		"task":        exchange.Task,
		"sent":        exchange.Sent,
		"is_error":    exchange.IsError,
		"duration_ms": exchange.Duration.Milliseconds(),
	})
	s.exchangeEvents.ExchangeSettled(ctx, exchange)
	return exchange
}

func (s *assistantService) ListExchanges(ctx context.Context, id uuid.UUID, query *dto.ExchangeListQuery) (*dto.ExchangeListResponse, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = constant.DefaultExchangePage
	}
	if limit > constant.MaxExchangePage {
		limit = constant.MaxExchangePage
	}

	exchanges, err := s.exchangeRepo.FindAll(ctx, contract.ExchangeFilter{
		SessionId: id,
		Limit:     limit,
		Offset:    query.Offset,
	})
	if err != nil {
		return nil, err
	}
	total, err := s.exchangeRepo.Count(ctx, id)
	if err != nil {
		return nil, err
	}

	items := make([]dto.ExchangeResponse, 0, len(exchanges))
	for _, e := range exchanges {
		items = append(items, s.mapper.ExchangeToResponse(e))
	}

	return &dto.ExchangeListResponse{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: query.Offset,
	}, nil
}

func (s *assistantService) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *assistantService) find(id uuid.UUID) (*memory.SessionRecord, error) {
	record, ok := s.sessionRepo.Get(id)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, serverutils.ErrSessionNotFound)
	}
	return record, nil
}
