package store

import (
	"context"
	"errors"

	"github.com/codelieche/analytics/pkg/core"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewTicketFactStore 创建TicketFactStore实例
func NewTicketFactStore(db *gorm.DB) core.TicketFactStore {
	return &TicketFactStore{
		db: db,
	}
}

// TicketFactStore 工单事实存储实现
type TicketFactStore struct {
	db *gorm.DB
}

// Upsert 按external_ticket_id插入或覆盖
// 同一工单重复抽取时原地更新，保证一个源工单只有一行
func (s *TicketFactStore) Upsert(ctx context.Context, uow core.UnitOfWork, fact *core.TicketFact) error {
	if fact.ExternalTicketID == "" {
		return errors.New("external_ticket_id不能为空")
	}
	conn := connOf(ctx, s.db, uow)

	fact.ID = 0
	err := conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_ticket_id"}},
		UpdateAll: true,
	}).Create(fact).Error
	if err != nil {
		return err
	}

	// 回填ID
	var stored core.TicketFact
	if err := conn.Select("id").Where("external_ticket_id = ?", fact.ExternalTicketID).Take(&stored).Error; err != nil {
		return err
	}
	fact.ID = stored.ID
	return nil
}

// FindByExternalID 根据源工单ID查询
func (s *TicketFactStore) FindByExternalID(ctx context.Context, externalID string) (*core.TicketFact, error) {
	var fact = &core.TicketFact{}
	if err := s.db.WithContext(ctx).Where("external_ticket_id = ?", externalID).Take(fact).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return fact, nil
}

// Count 工单事实行数
func (s *TicketFactStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&core.TicketFact{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
