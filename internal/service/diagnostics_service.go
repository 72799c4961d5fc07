package service

import (
	"context"
	"errors"
	"strings"

	"metabolite-assistant-be/internal/dto"
	"metabolite-assistant-be/internal/pkg/logger"
	"metabolite-assistant-be/internal/pkg/serverutils"
)

type IDiagnosticsService interface {
	GetLogs(ctx context.Context, query *dto.LogQuery) ([]dto.LogEntryResponse, error)
	GetLogById(ctx context.Context, id string) (*dto.LogEntryResponse, error)
}

type diagnosticsService struct {
	logger logger.ILogger
}

func NewDiagnosticsService(log logger.ILogger) IDiagnosticsService {
	return &diagnosticsService{logger: log}
}

func (s *diagnosticsService) GetLogs(ctx context.Context, query *dto.LogQuery) ([]dto.LogEntryResponse, error) {
	entries, err := s.logger.GetLogs(logger.LogFilter{
		Level:  strings.ToUpper(query.Level),
		Module: query.Module,
		Limit:  query.Limit,
		Offset: query.Offset,
	})
	if err != nil {
		return nil, err
	}

	res := make([]dto.LogEntryResponse, 0, len(entries))
	for _, e := range entries {
		res = append(res, toLogEntryResponse(e))
	}
	return res, nil
}

func (s *diagnosticsService) GetLogById(ctx context.Context, id string) (*dto.LogEntryResponse, error) {
	entry, err := s.logger.GetLogById(id)
	if err != nil {
		if errors.Is(err, logger.ErrLogNotFound) {
			return nil, serverutils.NewAppError(404, "Log entry not found", err)
		}
		return nil, err
	}

	res := toLogEntryResponse(*entry)
	return &res, nil
}

func toLogEntryResponse(e logger.LogEntry) dto.LogEntryResponse {
	return dto.LogEntryResponse{
		Id:        e.Id,
		Timestamp: e.Timestamp,
		Level:     e.Level,
		Module:    e.Module,
		Message:   e.Message,
		Details:   e.Details,
	}
}
