package balancesheet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrAggregationRunning indicates another annual aggregation run holds the
// mutex. The periodic job must never overlap with itself.
var ErrAggregationRunning = errors.New("balancesheet: annual aggregation already running")

// Locker guards the aggregation critical section.
type Locker interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

// Service exposes balance-sheet reads and the annual aggregation workflow.
type Service struct {
	repo   RepositoryPort
	locker Locker
	now    func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, locker Locker) *Service {
	return &Service{repo: repo, locker: locker, now: func() time.Time { return time.Now().UTC() }}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// BranchSnapshot returns per-kind running totals for a branch at an instant.
func (s *Service) BranchSnapshot(ctx context.Context, branchID uuid.UUID, asOf time.Time) (Snapshot, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	snap := Snapshot{BranchID: branchID, AsOf: asOf}
	var err error
	if snap.Assets, err = s.repo.KindTotal(ctx, branchID, KindAsset, asOf); err != nil {
		return Snapshot{}, err
	}
	if snap.Capital, err = s.repo.KindTotal(ctx, branchID, KindCapital, asOf); err != nil {
		return Snapshot{}, err
	}
	if snap.Liabilities, err = s.repo.KindTotal(ctx, branchID, KindLiability, asOf); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// AppendEntry books a manual balance-sheet line in its own transaction.
// Used for positions that do not move ledger money, e.g. a liability taken
// on outside the ledger.
func (s *Service) AppendEntry(ctx context.Context, e Entry) (Entry, error) {
	return s.repo.Append(ctx, e)
}

// ListEntries returns branch line items.
func (s *Service) ListEntries(ctx context.Context, branchID uuid.UUID, kind Kind, limit int) ([]Entry, error) {
	return s.repo.ListEntries(ctx, branchID, kind, limit)
}

// ListAnnualBalances returns aggregation results.
func (s *Service) ListAnnualBalances(ctx context.Context, year string) ([]AnnualBalance, error) {
	return s.repo.ListAnnualBalances(ctx, year)
}

// RunAnnual aggregates opening and closing balances for every branch for the
// given accounting year. Opening is the running total at period start,
// closing at period end. Re-running for an already aggregated branch+year is
// idempotent: the existing row is kept and returned unchanged.
func (s *Service) RunAnnual(ctx context.Context, year int) ([]AnnualBalance, error) {
	if year <= 0 {
		return nil, fmt.Errorf("balancesheet: invalid year %d", year)
	}
	if s.locker != nil {
		if err := s.locker.Acquire(ctx); err != nil {
			return nil, ErrAggregationRunning
		}
		defer func() { _ = s.locker.Release(ctx) }()
	}

	opening := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	closing := opening.AddDate(1, 0, 0).Add(-time.Nanosecond)

	branches, err := s.repo.ListBranchIDs(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]AnnualBalance, 0, len(branches))
	for _, branchID := range branches {
		open, err := s.BranchSnapshot(ctx, branchID, opening)
		if err != nil {
			return nil, err
		}
		closed, err := s.BranchSnapshot(ctx, branchID, closing)
		if err != nil {
			return nil, err
		}
		ab := AnnualBalance{
			BranchID:                branchID,
			AccountingYear:          fmt.Sprintf("%d", year),
			AssetsOpeningBalance:    open.Assets,
			AssetsClosingBalance:    closed.Assets,
			CapitalOpeningBalance:   open.Capital,
			CapitalClosingBalance:   closed.Capital,
			LiabilityOpeningBalance: open.Liabilities,
			LiabilityClosingBalance: closed.Liabilities,
		}
		stored, _, err := s.repo.InsertAnnualBalance(ctx, ab)
		if err != nil {
			return nil, err
		}
		results = append(results, stored)
	}
	return results, nil
}
