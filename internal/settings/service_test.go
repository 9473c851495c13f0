package settings

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
)

type fakeStore struct {
	docs    map[string][]byte
	getCnt  int
	upserts map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string][]byte), upserts: make(map[string][]byte)}
}

func (s *fakeStore) GetRaw(_ context.Context, _ uuid.UUID, key string) ([]byte, error) {
	s.getCnt++
	doc, ok := s.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (s *fakeStore) Upsert(_ context.Context, _ uuid.UUID, key string, value []byte) error {
	s.upserts[key] = value
	return nil
}

func TestService_MissingConfigIsConfigurationError(t *testing.T) {
	svc := New(newFakeStore(), nil, logger.New("test"))

	_, err := svc.ScoringConfig(context.Background(), uuid.New())
	if !apperr.Is(err, apperr.KindConfiguration) {
		t.Fatalf("expected configuration error for missing document, got %v", err)
	}
}

func TestService_ParsesStoredDocument(t *testing.T) {
	store := newFakeStore()
	store.docs[KeyScoringConfig] = []byte(scoringFixture)
	svc := New(store, nil, logger.New("test"))

	cfg, err := svc.ScoringConfig(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FitWeight != 0.6 || cfg.EngagementWeight != 0.4 {
		t.Fatalf("unexpected weights: fit=%v engagement=%v", cfg.FitWeight, cfg.EngagementWeight)
	}
}

func TestService_CacheAvoidsRepeatedStoreReads(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)

	store := newFakeStore()
	store.docs[KeyScoringConfig] = []byte(scoringFixture)
	svc := New(store, cache, logger.New("test"))

	tenantID := uuid.New()
	ctx := context.Background()
	if _, err := svc.ScoringConfig(ctx, tenantID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.ScoringConfig(ctx, tenantID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.getCnt != 1 {
		t.Fatalf("expected one store read with a warm cache, got %d", store.getCnt)
	}
}

func TestService_UpdateRejectsBrokenDocument(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil, logger.New("test"))

	err := svc.Update(context.Background(), uuid.New(), KeyScoringConfig, []byte(`{"fleet_size_points": {}}`))
	if !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("expected bad request for broken document, got %v", err)
	}
	if len(store.upserts) != 0 {
		t.Fatal("broken document must not be persisted")
	}
}

func TestService_UpdatePersistsAndInvalidatesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)

	store := newFakeStore()
	store.docs[KeyScoreDecay] = []byte(`{"enabled": false}`)
	svc := New(store, cache, logger.New("test"))

	tenantID := uuid.New()
	ctx := context.Background()

	// Warm the cache with the disabled policy.
	cfg, err := svc.DecayConfig(ctx, tenantID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Enabled {
		t.Fatal("expected disabled policy")
	}

	updated := []byte(`{"enabled": true, "inactivity_threshold_days": 30, "decay_type": "flat", "decay_value": 10, "minimum_score": 0}`)
	if err := svc.Update(ctx, tenantID, KeyScoreDecay, updated); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store.docs[KeyScoreDecay] = updated

	cfg, err = svc.DecayConfig(ctx, tenantID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Enabled {
		t.Fatal("expected cache to be invalidated so the new policy is served")
	}
}

func TestService_UnknownKeyRejected(t *testing.T) {
	svc := New(newFakeStore(), nil, logger.New("test"))

	err := svc.Update(context.Background(), uuid.New(), "favorite_color", []byte(`{}`))
	if !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("expected bad request for unknown key, got %v", err)
	}
}
