package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

var errNoLongerIdle = errors.New("account no longer idle")

// SweepResult summarizes one dormant sweep.
type SweepResult struct {
	Cutoff       time.Time
	Scanned      int
	Transitioned int
	Skipped      int
	Failed       int
}

// SweepDormant moves ACTIVE accounts whose last login is older than idleThreshold to
// DORMANT.
//
// Candidate ids are collected page by page before any write, so transitioned records
// cannot shift later pages. Each candidate is then re-read and only transitioned if it
// still qualifies; accounts that logged in or were deleted in the meantime are skipped.
// A failure on one record is counted and logged, and the sweep moves on.
func (s *AccountService) SweepDormant(ctx context.Context, now time.Time, idleThreshold time.Duration, pageSize int) (SweepResult, error) {
	cutoff := now.Add(-idleThreshold)
	result := SweepResult{Cutoff: cutoff}

	ids, err := s.collectIdle(ctx, cutoff, pageSize)
	result.Scanned = len(ids)
	if err != nil {
		return result, err
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		_, err := s.mutate(ctx, id, func(u *domain.User) error {
			if u.Status != domain.UserStatusActive || !u.IdleSince(cutoff) {
				return errNoLongerIdle
			}
			u.Status = domain.UserStatusDormant
			return nil
		})
		switch {
		case err == nil:
			result.Transitioned++
			s.publishStatusChange(ctx, id, events.TriggerSweep, domain.UserStatusActive, domain.UserStatusDormant)
		case errors.Is(err, errNoLongerIdle), apperrors.HasCode(err, apperrors.CodeNotFound):
			result.Skipped++
			s.logger.Debug("dormant sweep skipped account", zap.String("user_id", id), zap.Error(err))
		default:
			result.Failed++
			s.logger.Warn("dormant sweep failed to update account", zap.String("user_id", id), zap.Error(err))
		}
	}

	return result, nil
}

func (s *AccountService) collectIdle(ctx context.Context, cutoff time.Time, pageSize int) ([]string, error) {
	var ids []string
	req := domain.PageRequest{Page: 0, Size: pageSize}.Normalize()
	for {
		page, err := s.users.ListIdleBefore(ctx, cutoff, domain.UserStatusActive, req)
		if err != nil {
			return ids, err
		}
		for _, u := range page.Items {
			if u.LastLoginDate == nil {
				continue
			}
			ids = append(ids, u.ID)
		}
		if !page.HasNext() {
			return ids, nil
		}
		req.Page++
	}
}
