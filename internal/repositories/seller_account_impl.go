package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stowpay/internal/models"
)

type sellerAccountRepository struct {
	db *gorm.DB
}

func NewSellerAccountRepository(db *gorm.DB) SellerAccountRepository {
	return &sellerAccountRepository{db: db}
}

func (r *sellerAccountRepository) Create(ctx context.Context, account *models.SellerAccount) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *sellerAccountRepository) GetByStoreID(ctx context.Context, storeID uint) (*models.SellerAccount, error) {
	var account models.SellerAccount
	err := r.db.WithContext(ctx).First(&account, "store_id = ?", storeID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSellerAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *sellerAccountRepository) GetByLocalReference(ctx context.Context, ref string) (*models.SellerAccount, error) {
	var account models.SellerAccount
	err := r.db.WithContext(ctx).First(&account, "local_reference_id = ?", ref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSellerAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *sellerAccountRepository) Mutate(ctx context.Context, storeID uint, fn func(a *models.SellerAccount) error) (*models.SellerAccount, error) {
	var account models.SellerAccount
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&account, "store_id = ?", storeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSellerAccountNotFound
			}
			return err
		}
		if err := fn(&account); err != nil {
			return err
		}
		return tx.Save(&account).Error
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}
