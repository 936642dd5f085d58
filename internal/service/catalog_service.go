package service

import (
	"context"
	"encoding/json"
	"time"

	"washly/internal/dto"
	"washly/internal/model"
	"washly/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// CatalogService is the read-only view of the client directory and the
// service catalog. Lookups go through a Redis read-through cache when one is
// configured.
type CatalogService interface {
	GetClient(ctx context.Context, id uuid.UUID) (*dto.ClientResponse, error)
	GetService(ctx context.Context, id uuid.UUID) (*dto.CatalogServiceResponse, error)
}

type catalogService struct {
	repo repository.CatalogRepository
	rdb  *redis.Client // nil disables caching
	ttl  time.Duration
}

func NewCatalogService(repo repository.CatalogRepository, rdb *redis.Client, ttl time.Duration) CatalogService {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &catalogService{repo: repo, rdb: rdb, ttl: ttl}
}

func (s *catalogService) GetClient(ctx context.Context, id uuid.UUID) (*dto.ClientResponse, error) {
	var resp dto.ClientResponse
	if s.cached(ctx, "cliente:"+id.String(), &resp) {
		return &resp, nil
	}

	c, err := s.repo.FindClientByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "cliente no encontrado")
	}
	resp = toClientResponse(c)
	s.store("cliente:"+id.String(), resp)
	return &resp, nil
}

func (s *catalogService) GetService(ctx context.Context, id uuid.UUID) (*dto.CatalogServiceResponse, error) {
	var resp dto.CatalogServiceResponse
	if s.cached(ctx, "servicio:"+id.String(), &resp) {
		return &resp, nil
	}

	svc, err := s.repo.FindServiceByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "servicio no encontrado")
	}
	resp = toCatalogServiceResponse(svc)
	s.store("servicio:"+id.String(), resp)
	return &resp, nil
}

func (s *catalogService) cached(ctx context.Context, key string, dst any) bool {
	if s.rdb == nil {
		return false
	}
	b, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(b, dst) == nil
}

// store populates the cache. Best effort: errors are only logged.
func (s *catalogService) store(key string, v any) {
	if s.rdb == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.rdb.Set(context.Background(), key, b, s.ttl).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("catalog cache: set failed")
	}
}

func toClientResponse(c *model.Client) dto.ClientResponse {
	return dto.ClientResponse{
		ID:     c.ID.String(),
		Name:   c.Name,
		Phone:  c.Phone,
		Email:  c.Email,
		Active: c.Active,
	}
}

func toCatalogServiceResponse(s *model.CatalogService) dto.CatalogServiceResponse {
	return dto.CatalogServiceResponse{
		ID:        s.ID.String(),
		Name:      s.Name,
		Unit:      s.Unit,
		UnitPrice: s.UnitPrice,
		Active:    s.Active,
	}
}
