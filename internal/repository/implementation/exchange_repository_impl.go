package implementation

import (
	"context"

	"metabolite-assistant-be/internal/entity"
	"metabolite-assistant-be/internal/mapper"
	"metabolite-assistant-be/internal/model"
	"metabolite-assistant-be/internal/repository/contract"
	"metabolite-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ExchangeRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ExchangeMapper
}

func NewExchangeRepository(db *gorm.DB) contract.ExchangeRepository {
	return &ExchangeRepositoryImpl{
		db:     db,
		mapper: mapper.NewExchangeMapper(),
	}
}

func (r *ExchangeRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ExchangeRepositoryImpl) Create(ctx context.Context, exchange *entity.Exchange) error {
	m := r.mapper.ExchangeToModel(exchange)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*exchange = *r.mapper.ExchangeToEntity(m)
	return nil
}

func (r *ExchangeRepositoryImpl) FindAll(ctx context.Context, filter contract.ExchangeFilter) ([]*entity.Exchange, error) {
	var models []*model.AssistantExchange
	query := r.applySpecifications(r.db.WithContext(ctx),
		specification.BySessionID{SessionID: filter.SessionId},
		specification.OrderBy{Field: "started_at"},
		specification.Pagination{Limit: filter.Limit, Offset: filter.Offset},
	)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ExchangesToEntities(models), nil
}

func (r *ExchangeRepositoryImpl) Count(ctx context.Context, sessionId uuid.UUID) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.AssistantExchange{}),
		specification.BySessionID{SessionID: sessionId},
	)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ExchangeRepositoryImpl) DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("session_id = ?", sessionId).Delete(&model.AssistantExchange{}).Error
}
