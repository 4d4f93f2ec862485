package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"lendmark/internal/domain/offer"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	recommendedKeyPrefix = "offers:recommended:"
	summaryKeyPrefix     = "users:summary:"

	// Outside recommendedKeyPrefix so pattern deletes never reset it.
	recommendedGenerationKey = "offers:recommended-generation"
)

type recommendedCacheKeyInput struct {
	Kind           string `json:"kind"`
	MaxAmountCents int64  `json:"max_amount_cents"`
	Limit          int    `json:"limit"`
}

// RecommendedCacheKey is per viewer so invalidation can also be scoped to a
// single user if needed. generation is the value of the recommendation
// generation counter read before the candidates were loaded.
func RecommendedCacheKey(viewerID uuid.UUID, generation int64, params RecommendParams) string {
	in := recommendedCacheKeyInput{
		Kind:           strings.ToLower(strings.TrimSpace(params.Kind)),
		MaxAmountCents: params.MaxAmountCents,
		Limit:          params.Limit,
	}
	b, _ := json.Marshal(in)
	sum := sha256.Sum256(b)
	return recommendedKeyPrefix + viewerID.String() + ":" + strconv.FormatInt(generation, 10) + ":" + hex.EncodeToString(sum[:])
}

func recommendedPattern() string {
	return recommendedKeyPrefix + "*"
}

// invalidateRecommendations bumps the generation first. A request that
// loaded candidates before the bump writes under the old generation, which
// no later read consults. The pattern delete only reclaims memory.
func invalidateRecommendations(ctx context.Context, c Cache, logger zerolog.Logger) {
	if _, err := c.Incr(ctx, recommendedGenerationKey); err != nil {
		logger.Warn().Err(err).Msg("recommendation generation bump failed")
	}
	if err := c.DeleteByPattern(ctx, recommendedPattern()); err != nil {
		logger.Warn().Err(err).Msg("recommendation cache invalidation failed")
	}
}

// SummaryCacheKey holds a user's ledger summary. Any offer or payment the
// user takes part in deletes it.
func SummaryCacheKey(userID uuid.UUID) string {
	return summaryKeyPrefix + userID.String()
}

func participants(o offer.Offer) []uuid.UUID {
	ids := []uuid.UUID{o.CreatorID}
	if o.AcceptorID != nil {
		ids = append(ids, *o.AcceptorID)
	}
	return ids
}

func invalidateSummaries(ctx context.Context, c Cache, logger zerolog.Logger, userIDs ...uuid.UUID) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if id != uuid.Nil {
			keys = append(keys, SummaryCacheKey(id))
		}
	}
	if len(keys) == 0 {
		return
	}
	if err := c.Delete(ctx, keys...); err != nil {
		logger.Warn().Err(err).Msg("summary cache invalidation failed")
	}
}
