package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"otomart/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CacheService fronts Redis for the read-heavy billing surfaces: the
// plan catalog and per-tenant billing profiles. Quota enforcement and
// invoice pricing never read from here; those paths recount and
// re-resolve inside their transactions.
type CacheService interface {
	GetPlans(ctx context.Context) ([]*models.Plan, error)
	SetPlans(ctx context.Context, plans []*models.Plan, ttl time.Duration) error
	InvalidatePlans(ctx context.Context) error

	GetBillingProfile(ctx context.Context, tenantID uuid.UUID) (*models.BillingProfile, error)
	SetBillingProfile(ctx context.Context, tenantID uuid.UUID, profile *models.BillingProfile, ttl time.Duration) error
	InvalidateTenant(ctx context.Context, tenantID uuid.UUID) error
}

type redisCacheService struct {
	client *redis.Client
}

// NewRedisClient builds the shared Redis client. Accepts
// redis://host:port as well as bare host:port.
func NewRedisClient(addr, password string, db int) *redis.Client {
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsedAddr = strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")
	}

	return redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})
}

func NewRedisCacheService(client *redis.Client) CacheService {
	return &redisCacheService{client: client}
}

const plansKey = "billing:plans"

func profileKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("billing:profile:%s", tenantID)
}

func (c *redisCacheService) GetPlans(ctx context.Context) ([]*models.Plan, error) {
	data, err := c.client.Get(ctx, plansKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var plans []*models.Plan
	if err := json.Unmarshal(data, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

func (c *redisCacheService) SetPlans(ctx context.Context, plans []*models.Plan, ttl time.Duration) error {
	data, err := json.Marshal(plans)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, plansKey, data, ttl).Err()
}

func (c *redisCacheService) InvalidatePlans(ctx context.Context) error {
	return c.client.Del(ctx, plansKey).Err()
}

func (c *redisCacheService) GetBillingProfile(ctx context.Context, tenantID uuid.UUID) (*models.BillingProfile, error) {
	data, err := c.client.Get(ctx, profileKey(tenantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	profile := &models.BillingProfile{}
	if err := json.Unmarshal(data, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (c *redisCacheService) SetBillingProfile(ctx context.Context, tenantID uuid.UUID, profile *models.BillingProfile, ttl time.Duration) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, profileKey(tenantID), data, ttl).Err()
}

func (c *redisCacheService) InvalidateTenant(ctx context.Context, tenantID uuid.UUID) error {
	return c.client.Del(ctx, profileKey(tenantID)).Err()
}
