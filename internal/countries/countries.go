// Package countries answers two questions about a lead's country: does GDPR
// apply, and do we sell there. Unknown countries answer no to both, which
// routes them through the expansion-opportunity path instead of the consent
// gate.
package countries

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// cacheTTL bounds how stale the in-process country table may get. The table
// changes rarely, so a coarse TTL is enough.
const cacheTTL = 10 * time.Minute

type countryInfo struct {
	gdpr        bool
	operational bool
}

// Service resolves country attributes from the countries table with an
// in-process cache in front.
type Service struct {
	pool *pgxpool.Pool

	mu       sync.RWMutex
	table    map[string]countryInfo
	loadedAt time.Time
}

func New(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// IsGDPRCountry reports whether the country requires explicit consent.
// Unknown or empty codes do not.
func (s *Service) IsGDPRCountry(ctx context.Context, code string) (bool, error) {
	info, ok, err := s.lookup(ctx, code)
	if err != nil {
		return false, err
	}
	return ok && info.gdpr, nil
}

// IsOperational reports whether the business actively sells in the country.
// Unknown or empty codes are not operational.
func (s *Service) IsOperational(ctx context.Context, code string) (bool, error) {
	info, ok, err := s.lookup(ctx, code)
	if err != nil {
		return false, err
	}
	return ok && info.operational, nil
}

func (s *Service) lookup(ctx context.Context, code string) (countryInfo, bool, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return countryInfo{}, false, nil
	}

	s.mu.RLock()
	table, loadedAt := s.table, s.loadedAt
	s.mu.RUnlock()

	if table == nil || time.Since(loadedAt) > cacheTTL {
		var err error
		table, err = s.reload(ctx)
		if err != nil {
			return countryInfo{}, false, err
		}
	}

	info, ok := table[code]
	return info, ok, nil
}

func (s *Service) reload(ctx context.Context) (map[string]countryInfo, error) {
	rows, err := s.pool.Query(ctx, `SELECT code, gdpr_applies, operational FROM countries`)
	if err != nil {
		return nil, fmt.Errorf("load countries: %w", err)
	}
	defer rows.Close()

	table := make(map[string]countryInfo)
	for rows.Next() {
		var code string
		var info countryInfo
		if err := rows.Scan(&code, &info.gdpr, &info.operational); err != nil {
			return nil, fmt.Errorf("scan country: %w", err)
		}
		table[strings.ToUpper(code)] = info
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load countries: %w", err)
	}

	s.mu.Lock()
	s.table = table
	s.loadedAt = time.Now()
	s.mu.Unlock()
	return table, nil
}
