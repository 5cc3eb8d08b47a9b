package search

import (
	"github.com/hyperjump/shelfrank/internal/config"
	"github.com/hyperjump/shelfrank/internal/models"
)

// ProcessQuery validates the query and applies the configured limits.
// An omitted limit takes cfg.DefaultLimit; larger limits are capped at cfg.MaxLimit.
// An explicit zero is kept.
func ProcessQuery(query *models.SearchQuery, cfg *config.SearchConfig) error {
	maxLimit := 0
	if cfg != nil {
		maxLimit = cfg.MaxLimit
		if query.Limit == nil && cfg.DefaultLimit > 0 {
			query.Limit = models.LimitOf(cfg.DefaultLimit)
		}
	}
	return query.Validate(maxLimit)
}
