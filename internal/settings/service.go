package settings

import (
	"context"
	"errors"

	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence dependency of the settings service.
type Store interface {
	GetRaw(ctx context.Context, tenantID uuid.UUID, key string) ([]byte, error)
	Upsert(ctx context.Context, tenantID uuid.UUID, key string, value []byte) error
}

// Service resolves typed rule configurations for a tenant. The Redis cache is
// optional; cache errors degrade to a direct repository read.
type Service struct {
	store Store
	cache *Cache
	log   *logger.Logger
}

// New creates a settings service. cache may be nil.
func New(store Store, cache *Cache, log *logger.Logger) *Service {
	return &Service{store: store, cache: cache, log: log}
}

// ScoringConfig returns the parsed scoring rule document for a tenant.
func (s *Service) ScoringConfig(ctx context.Context, tenantID uuid.UUID) (*ScoringConfig, error) {
	raw, err := s.raw(ctx, tenantID, KeyScoringConfig)
	if err != nil {
		return nil, err
	}
	return ParseScoringConfig(raw)
}

// PriorityConfig returns the parsed priority classification document.
func (s *Service) PriorityConfig(ctx context.Context, tenantID uuid.UUID) (*PriorityConfig, error) {
	raw, err := s.raw(ctx, tenantID, KeyPriorityConfig)
	if err != nil {
		return nil, err
	}
	return ParsePriorityConfig(raw)
}

// AssignmentConfig returns the parsed assignment rule document.
func (s *Service) AssignmentConfig(ctx context.Context, tenantID uuid.UUID) (*AssignmentConfig, error) {
	raw, err := s.raw(ctx, tenantID, KeyAssignmentRules)
	if err != nil {
		return nil, err
	}
	return ParseAssignmentConfig(raw)
}

// DecayConfig returns the parsed score decay policy.
func (s *Service) DecayConfig(ctx context.Context, tenantID uuid.UUID) (*DecayConfig, error) {
	raw, err := s.raw(ctx, tenantID, KeyScoreDecay)
	if err != nil {
		return nil, err
	}
	return ParseDecayConfig(raw)
}

// Raw returns the stored JSON document for a key without parsing it.
func (s *Service) Raw(ctx context.Context, tenantID uuid.UUID, key string) ([]byte, error) {
	return s.raw(ctx, tenantID, key)
}

// Update validates and stores a tenant-specific rule document, then drops the
// cached copy. A document that fails to parse is rejected before it can shadow
// a working configuration.
func (s *Service) Update(ctx context.Context, tenantID uuid.UUID, key string, raw []byte) error {
	var err error
	switch key {
	case KeyScoringConfig:
		_, err = ParseScoringConfig(raw)
	case KeyPriorityConfig:
		_, err = ParsePriorityConfig(raw)
	case KeyAssignmentRules:
		_, err = ParseAssignmentConfig(raw)
	case KeyScoreDecay:
		_, err = ParseDecayConfig(raw)
	default:
		return apperr.BadRequest("unknown setting key").WithOp(key)
	}
	if err != nil {
		// A configuration error on the read path is a server problem; a bad
		// submitted document is the caller's.
		return apperr.Wrap(apperr.KindBadRequest, "invalid rule document", err).WithOp(key)
	}

	if err := s.store.Upsert(ctx, tenantID, key, raw); err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, tenantID, key); err != nil && s.log != nil {
			s.log.Warn("settings cache invalidation failed", "key", key, "error", err)
		}
	}
	return nil
}

func (s *Service) raw(ctx context.Context, tenantID uuid.UUID, key string) ([]byte, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, tenantID, key)
		if err != nil && s.log != nil {
			s.log.Warn("settings cache read failed", "key", key, "error", err)
		}
		if cached != nil {
			return cached, nil
		}
	}

	raw, err := s.store.GetRaw(ctx, tenantID, key)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.Configuration("rule configuration is missing").WithOp(key)
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, tenantID, key, raw); err != nil && s.log != nil {
			s.log.Warn("settings cache write failed", "key", key, "error", err)
		}
	}

	return raw, nil
}
