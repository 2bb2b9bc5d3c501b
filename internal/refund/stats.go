package refund

import (
	"context"
	"encoding/json"
	"time"

	"refund_engine/internal/database"
	"refund_engine/internal/models"
)

const (
	statsCacheKey = "refund:stats"
	statsCacheTTL = 30 * time.Second
)

// Stats est le rollup lecture seule consommé par les tableaux de bord.
type Stats struct {
	CountByState        map[models.RefundState]int `json:"count_by_state"`
	PendingCount        int                        `json:"pending_count"`
	VendorCreditPending int                        `json:"vendor_credit_pending_count"`
	TotalRefunded       float64                    `json:"total_refunded"`
}

// GetStats calcule les agrégats depuis le Store, avec un cache Redis court :
// cohérence éventuelle acceptée, aucun accès en écriture.
func (e *Engine) GetStats(ctx context.Context) (*Stats, error) {
	// 1. Essayer le cache Redis
	if database.Redis != nil {
		if data, err := database.Redis.Get(ctx, statsCacheKey).Result(); err == nil {
			var cached Stats
			if json.Unmarshal([]byte(data), &cached) == nil {
				return &cached, nil
			}
		}
	}

	// 2. Recalculer depuis le Store
	counts, err := e.store.CountByState(ctx)
	if err != nil {
		return nil, err
	}
	total, err := e.store.SumCompletedAmount(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		CountByState: counts,
		PendingCount: counts[models.StateRequested] + counts[models.StateUnderReview],
		VendorCreditPending: counts[models.StateVendorReturnInitiated] +
			counts[models.StateVendorCreditPending],
		TotalRefunded: total,
	}

	if database.Redis != nil {
		if data, err := json.Marshal(stats); err == nil {
			database.Redis.Set(ctx, statsCacheKey, data, statsCacheTTL)
		}
	}

	return stats, nil
}
