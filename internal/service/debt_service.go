package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/waterlog/routeledger/internal/apperr"
	"github.com/waterlog/routeledger/internal/metrics"
	"github.com/waterlog/routeledger/internal/model"
	"github.com/waterlog/routeledger/internal/repository"
)

const entityDebt = "debt"

// DebtService drives the resolution workflow of debt records.
type DebtService struct {
	db      *sql.DB
	repos   Repos
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

// NewDebtService constructs a DebtService.  m and log may be nil.
func NewDebtService(db *sql.DB, repos Repos, m *metrics.Metrics, log *zap.Logger) *DebtService {
	if log == nil {
		log = zap.NewNop()
	}
	return &DebtService{db: db, repos: repos, metrics: m, log: log.Named("debts"), now: time.Now}
}

// ResolveInput moves a debt to a new status.
type ResolveInput struct {
	RequestMeta
	DebtID          uint64
	Status          model.DebtStatus
	ResolutionNotes string
}

// Resolve applies a status change allowed by the debt transition table.
// Moving to a settled status stamps resolved_at and resolved_by.
func (s *DebtService) Resolve(ctx context.Context, in ResolveInput) (*model.DebtRecord, error) {
	if _, err := model.ParseDebtStatus(string(in.Status)); err != nil {
		return nil, apperr.Validation("status", "unknown debt status %q", in.Status)
	}
	now := s.now().UTC()

	var d *model.DebtRecord
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		d, err = s.repos.Debts.GetByIDTx(ctx, tx, in.DebtID)
		if errors.Is(err, repository.ErrDebtNotFound) {
			return apperr.NotFound(entityDebt, in.DebtID)
		}
		if err != nil {
			return err
		}
		if !d.Status.CanTransition(in.Status) {
			return apperr.InvalidState(entityDebt, d.ID, "cannot move debt from %s to %s", d.Status, in.Status)
		}
		before := d.Snapshot()
		from := d.Status

		d.Status = in.Status
		d.ResolutionNotes = nullString(in.ResolutionNotes)
		d.ResolvedAt = sql.NullTime{}
		d.ResolvedBy = sql.NullInt64{}
		if in.Status.Settled() {
			d.ResolvedAt = sql.NullTime{Time: now, Valid: true}
			d.ResolvedBy = sql.NullInt64{Int64: int64(in.ActorID), Valid: true}
		}
		err = s.repos.Debts.ResolveTx(ctx, tx, d.ID, from, d.Status, d.ResolutionNotes, d.ResolvedBy, d.ResolvedAt)
		if errors.Is(err, repository.ErrConflict) {
			return apperr.InvalidState(entityDebt, d.ID, "debt was changed by a concurrent request")
		}
		if err != nil {
			return err
		}
		return recordAudit(ctx, tx, s.repos.Audits, now, auditEntry{
			Meta:       in.RequestMeta,
			Action:     model.DebtAction(d.Status),
			EntityType: model.EntityDebt,
			EntityID:   d.ID,
			Old:        before,
			New:        d.Snapshot(),
			Notes:      in.ResolutionNotes,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordDebtResolution(string(d.Status))
	s.log.Info("debt resolved",
		zap.Uint64("debt_id", d.ID),
		zap.Uint64("route_id", d.RouteID),
		zap.String("status", string(d.Status)),
		zap.Uint64("actor_id", in.ActorID),
	)
	return d, nil
}

// ListByStatus returns debts in status, or every debt when status is empty.
func (s *DebtService) ListByStatus(ctx context.Context, status model.DebtStatus) ([]model.DebtRecord, error) {
	if status != "" {
		if _, err := model.ParseDebtStatus(string(status)); err != nil {
			return nil, apperr.Validation("status", "unknown debt status %q", status)
		}
	}
	return s.repos.Debts.ListByStatus(ctx, status)
}

// ListByRoute returns the debts raised for a route.
func (s *DebtService) ListByRoute(ctx context.Context, routeID uint64) ([]model.DebtRecord, error) {
	return s.repos.Debts.ListByRoute(ctx, routeID)
}
