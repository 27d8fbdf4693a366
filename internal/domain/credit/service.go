package credit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// consumeRetries bounds how many times a consume is retried after a
// concurrency conflict. Every retry re-reads the ledger from scratch.
const consumeRetries = 3

const statsCachePrefix = "credits:stats:"

// Service wraps the ledger repository with validation, bounded retries,
// structured logging and the Redis stats cache. The cache is a pure
// read-through projection: it is dropped inside every mutation path.
type Service struct {
	repo     Ledger
	cache    *redis.Client
	cacheTTL time.Duration
}

// NewService creates the credit service. cache may be nil; stats are then
// rebuilt from the database on every read.
func NewService(repo Ledger, cache *redis.Client, cacheTTL time.Duration) *Service {
	return &Service{repo: repo, cache: cache, cacheTTL: cacheTTL}
}

// RecordPurchase appends a purchase lot for the user. Redelivered
// external references are a no-op and return the existing transaction
// with created=false.
func (s *Service) RecordPurchase(ctx context.Context, userID uuid.UUID, credits, priceCents int64, tier Tier, externalRef string) (*Transaction, bool, error) {
	if credits <= 0 || externalRef == "" {
		return nil, false, ErrInvalidAmount
	}

	txn, created, err := s.repo.RecordPurchase(ctx, userID, credits, priceCents, tier, externalRef, time.Now().UTC())
	if err != nil {
		return nil, false, err
	}

	if created {
		s.invalidateStats(ctx, userID)
		log.Info().
			Str("user_id", userID.String()).
			Int64("transaction_id", txn.ID).
			Int64("credits", credits).
			Int64("price_cents", priceCents).
			Str("external_ref", externalRef).
			Time("expires_at", txn.ExpiresAt).
			Msg("credit purchase recorded")
	} else {
		log.Info().
			Str("user_id", userID.String()).
			Str("external_ref", externalRef).
			Int64("transaction_id", txn.ID).
			Msg("duplicate purchase reference, returning existing transaction")
	}

	return txn, created, nil
}

// Consume deducts amount from the user's oldest active lots. Either the
// full amount is allocated or nothing is. Concurrency conflicts are
// retried a bounded number of times with a fresh read each attempt.
func (s *Service) Consume(ctx context.Context, userID uuid.UUID, amount int64) (*ConsumptionResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var res *ConsumptionResult
	var err error
	for attempt := 0; attempt < consumeRetries; attempt++ {
		res, err = s.repo.Consume(ctx, userID, amount)
		if !errors.Is(err, ErrConcurrencyConflict) {
			break
		}
		log.Warn().
			Str("user_id", userID.String()).
			Int("attempt", attempt+1).
			Msg("consume hit concurrency conflict, retrying")
	}
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, userID)
	log.Info().
		Str("user_id", userID.String()).
		Int64("amount", amount).
		Int64("balance", res.Balance).
		Str("tier", string(res.Tier)).
		Int("lots_touched", len(res.Deductions)).
		Msg("credits consumed")

	return res, nil
}

// ExpireDue runs one expiry sweep as of now across all users, one user's
// transaction set at a time. A failure on one user is logged and skipped
// so it never blocks the rest of the sweep; the next scheduled run picks
// that user up again.
func (s *Service) ExpireDue(ctx context.Context, now time.Time) ([]ExpiredTransaction, error) {
	userIDs, err := s.repo.UsersWithDueCredits(ctx, now)
	if err != nil {
		return nil, err
	}

	expired := make([]ExpiredTransaction, 0)
	for _, userID := range userIDs {
		userExpired, err := s.repo.ExpireDueForUser(ctx, userID, now)
		if err != nil {
			log.Error().Err(err).
				Str("user_id", userID.String()).
				Msg("expiry sweep failed for user, will retry next run")
			continue
		}
		if len(userExpired) == 0 {
			continue
		}

		s.invalidateStats(ctx, userID)
		for _, e := range userExpired {
			log.Info().
				Str("user_id", e.UserID.String()).
				Int64("transaction_id", e.TransactionID).
				Int64("credits_expired", e.CreditsExpired).
				Msg("credit transaction expired")
		}
		expired = append(expired, userExpired...)
	}

	return expired, nil
}

// ExpiringBetween lists active lots expiring inside [from, to], for the
// pre-expiry warning emails.
func (s *Service) ExpiringBetween(ctx context.Context, from, to time.Time) ([]Transaction, error) {
	return s.repo.FindExpiringBetween(ctx, from, to)
}

// Stats serves the balance read contract, through the Redis cache when
// one is configured.
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*BalanceStats, error) {
	key := statsCachePrefix + userID.String()

	if s.cache != nil {
		raw, err := s.cache.Get(ctx, key).Bytes()
		if err == nil {
			var cached BalanceStats
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	active, err := s.repo.ActiveTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := BuildBalanceStats(active, total, time.Now().UTC())

	if s.cache != nil {
		if raw, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
				log.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to cache balance stats")
			}
		}
	}

	return stats, nil
}

func (s *Service) invalidateStats(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statsCachePrefix+userID.String()).Err(); err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to invalidate stats cache")
	}
}
