package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"stowpay/internal/models"
	"stowpay/internal/provider"
)

type CacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheService(client *redis.Client, defaultTTL time.Duration) *CacheService {
	return &CacheService{
		client: client,
		ttl:    defaultTTL,
	}
}

// Base operations
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	return s.SetWithTTL(ctx, key, value, s.ttl)
}

func (s *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to get cache value: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, nil
}

func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

// Key generation
func (s *CacheService) GenerateKey(entityType, keyType string, value interface{}) string {
	return fmt.Sprintf("%s:%s:%v", entityType, keyType, value)
}

// Provider balance caching. The balance endpoint is rate-limited on the
// provider side, so reads go through a short-lived cache.
func (s *CacheService) CacheBalance(ctx context.Context, balance *provider.Balance, ttl time.Duration) error {
	return s.SetWithTTL(ctx, s.GenerateKey("provider", "balance", "platform"), balance, ttl)
}

func (s *CacheService) GetBalance(ctx context.Context) (*provider.Balance, error) {
	var balance provider.Balance
	found, err := s.Get(ctx, s.GenerateKey("provider", "balance", "platform"), &balance)
	if err != nil || !found {
		return nil, err
	}
	return &balance, nil
}

func (s *CacheService) InvalidateBalance(ctx context.Context) error {
	return s.Delete(ctx, s.GenerateKey("provider", "balance", "platform"))
}

// Seller account caching, keyed by store.
func (s *CacheService) CacheSellerAccount(ctx context.Context, account *models.SellerAccount) error {
	key := s.GenerateKey("seller", "store", account.StoreID)
	return s.Set(ctx, key, account)
}

func (s *CacheService) GetSellerAccount(ctx context.Context, storeID uint) (*models.SellerAccount, error) {
	var account models.SellerAccount
	found, err := s.Get(ctx, s.GenerateKey("seller", "store", storeID), &account)
	if err != nil || !found {
		return nil, err
	}
	return &account, nil
}

func (s *CacheService) InvalidateSellerAccount(ctx context.Context, storeID uint) error {
	return s.Delete(ctx, s.GenerateKey("seller", "store", storeID))
}

// Close closes the Redis client connection
func (s *CacheService) Close() error {
	return s.client.Close()
}
