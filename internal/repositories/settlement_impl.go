package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stowpay/internal/models"
)

type settlementRepository struct {
	db *gorm.DB
}

func NewSettlementRepository(db *gorm.DB) SettlementRepository {
	return &settlementRepository{db: db}
}

func (r *settlementRepository) Create(ctx context.Context, settlement *models.Settlement) error {
	if settlement.ID == uuid.Nil {
		settlement.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(settlement).Error
}

func (r *settlementRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	var settlement models.Settlement
	err := r.db.WithContext(ctx).First(&settlement, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettlementNotFound
		}
		return nil, err
	}
	return &settlement, nil
}

func (r *settlementRepository) Mutate(ctx context.Context, id uuid.UUID, fn func(s *models.Settlement) error) (*models.Settlement, error) {
	var settlement models.Settlement
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&settlement, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSettlementNotFound
			}
			return err
		}
		if err := fn(&settlement); err != nil {
			return err
		}
		return tx.Save(&settlement).Error
	})
	if err != nil {
		return nil, err
	}
	return &settlement, nil
}

func (r *settlementRepository) Find(ctx context.Context, filter SettlementFilter, limit, offset int) ([]models.Settlement, int64, error) {
	var settlements []models.Settlement
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Settlement{})
	if filter.StoreID != 0 {
		query = query.Where("store_id = ?", filter.StoreID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", *filter.To)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&settlements).Error
	return settlements, total, err
}

func (r *settlementRepository) FindPendingByStore(ctx context.Context, storeID uint) ([]models.Settlement, error) {
	var settlements []models.Settlement
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND status = ?", storeID, models.SettlementStatusPending).
		Order("created_at ASC").
		Find(&settlements).Error
	return settlements, err
}

func (r *settlementRepository) Summarize(ctx context.Context, storeID uint, day time.Time) (*models.SettlementSummary, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	type row struct {
		Status string
		Count  int64
		Gross  decimal.Decimal
		Fee    decimal.Decimal
		Net    decimal.Decimal
	}
	var rows []row

	err := r.db.WithContext(ctx).Model(&models.Settlement{}).
		Where("store_id = ? AND created_at >= ? AND created_at < ?", storeID, dayStart, dayEnd).
		Select("status, COUNT(*) as count, COALESCE(SUM(gross_amount), 0) as gross, COALESCE(SUM(fee_amount), 0) as fee, COALESCE(SUM(net_amount), 0) as net").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	summary := &models.SettlementSummary{
		StoreID:       storeID,
		Date:          dayStart.Format("2006-01-02"),
		TotalGross:    decimal.Zero,
		TotalFee:      decimal.Zero,
		TotalNet:      decimal.Zero,
		CountByStatus: make(map[string]int64),
		NetByStatus:   make(map[string]decimal.Decimal),
	}
	for _, row := range rows {
		summary.TotalCount += row.Count
		summary.TotalGross = summary.TotalGross.Add(row.Gross)
		summary.TotalFee = summary.TotalFee.Add(row.Fee)
		summary.TotalNet = summary.TotalNet.Add(row.Net)
		summary.CountByStatus[row.Status] = row.Count
		summary.NetByStatus[row.Status] = row.Net
	}
	return summary, nil
}
