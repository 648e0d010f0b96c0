package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/waterlog/routeledger/internal/apperr"
	"github.com/waterlog/routeledger/internal/lock"
	"github.com/waterlog/routeledger/internal/metrics"
	"github.com/waterlog/routeledger/internal/model"
	"github.com/waterlog/routeledger/internal/queue"
	"github.com/waterlog/routeledger/internal/reconcile"
	"github.com/waterlog/routeledger/internal/repository"
)

const entityRoute = "route"

// RouteConfig carries the collaborators of RouteService.  Publisher,
// Locker and Metrics are optional.
type RouteConfig struct {
	BottlePrice decimal.Decimal
	PlantID     string
	Publisher   EventPublisher
	Locker      RouteLocker
	Metrics     *metrics.Metrics
	Log         *zap.Logger
	Now         func() time.Time
}

// RouteService owns the manifest lifecycle from checkout to settlement.
type RouteService struct {
	db    *sql.DB
	repos Repos
	cfg   RouteConfig
	log   *zap.Logger
}

// NewRouteService constructs a RouteService.
func NewRouteService(db *sql.DB, repos Repos, cfg RouteConfig) *RouteService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &RouteService{db: db, repos: repos, cfg: cfg, log: log.Named("routes")}
}

// OpenInput is a checkout request.
type OpenInput struct {
	RequestMeta
	DriverID           uint64
	TruckID            uint64
	InitialFullBottles int
}

// Open dispatches a truck: it validates driver and truck and creates an
// IN_PROGRESS manifest with its checkout audit entry.
func (s *RouteService) Open(ctx context.Context, in OpenInput) (*model.RouteManifest, error) {
	if in.InitialFullBottles < 0 {
		return nil, apperr.Validation("initial_full_bottles", "must be >= 0, got %d", in.InitialFullBottles)
	}
	if in.InitialFullBottles > reconcile.MaxCount {
		return nil, apperr.Validation("initial_full_bottles", "must be <= %d, got %d", reconcile.MaxCount, in.InitialFullBottles)
	}
	now := s.cfg.Now().UTC()

	m := &model.RouteManifest{
		DriverID:           in.DriverID,
		TruckID:            in.TruckID,
		RouteDate:          today(now),
		InitialFullBottles: in.InitialFullBottles,
		CheckoutAt:         now,
		CheckoutBy:         in.ActorID,
		AuditStatus:        model.StatusCreated,
		DebtAmount:         decimal.Zero,
	}
	if !m.AuditStatus.CanTransition(model.StatusInProgress) {
		return nil, apperr.InvalidState(entityRoute, 0, "cannot dispatch from %s", m.AuditStatus)
	}
	m.AuditStatus = model.StatusInProgress

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.checkDriver(ctx, tx, in.DriverID); err != nil {
			return err
		}
		if err := s.checkTruck(ctx, tx, in.TruckID); err != nil {
			return err
		}
		if err := s.repos.Routes.CreateTx(ctx, tx, m); err != nil {
			return err
		}
		return recordAudit(ctx, tx, s.repos.Audits, now, auditEntry{
			Meta:       in.RequestMeta,
			Action:     model.ActionRouteCheckout,
			EntityType: model.EntityRoute,
			EntityID:   m.ID,
			New:        m.Snapshot(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.cfg.Metrics.RecordCheckout()
	s.log.Info("route dispatched",
		zap.Uint64("route_id", m.ID),
		zap.Uint64("driver_id", m.DriverID),
		zap.Uint64("truck_id", m.TruckID),
		zap.Int("initial_full_bottles", m.InitialFullBottles),
	)
	return m, nil
}

func (s *RouteService) checkDriver(ctx context.Context, tx *sql.Tx, id uint64) error {
	u, err := s.repos.Users.GetByIDTx(ctx, tx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return apperr.Validation("driver_id", "driver %d does not exist", id)
	}
	if err != nil {
		return err
	}
	if !u.IsDriver() {
		return apperr.Validation("driver_id", "user %d is not a driver (role %s)", id, u.Role)
	}
	if !u.IsActive {
		return apperr.Validation("driver_id", "driver %d is inactive", id)
	}
	return nil
}

func (s *RouteService) checkTruck(ctx context.Context, tx *sql.Tx, id uint64) error {
	t, err := s.repos.Trucks.GetByIDTx(ctx, tx, id)
	if errors.Is(err, repository.ErrTruckNotFound) {
		return apperr.Validation("truck_id", "truck %d does not exist", id)
	}
	if err != nil {
		return err
	}
	if !t.IsActive {
		return apperr.Validation("truck_id", "truck %d is inactive", id)
	}
	return nil
}

// CheckInInput is the report captured when a truck returns.
type CheckInInput struct {
	RequestMeta
	RouteID          uint64
	ReturnedFull     int
	ReturnedEmpty    int
	ReportedDamaged  int
	EvidenceVerified bool
	Notes            string
	Sales            []reconcile.SaleLine
}

// CheckInResult is the settlement outcome returned to the caller.
type CheckInResult struct {
	RouteID        uint64
	Status         model.AuditStatus
	DebtAmount     decimal.Decimal
	Message        string
	Delta          int
	Strategy       reconcile.StrategyName
	SkippedClients []uint64
	DebtID         uint64
}

// CheckIn records the return of a truck and settles the route.  The sales
// replacement, manifest update, debt record and audit entry share one
// transaction; the settlement event is published after commit.
func (s *RouteService) CheckIn(ctx context.Context, in CheckInInput) (*CheckInResult, error) {
	counts := []struct {
		field string
		v     int
	}{
		{"returned_full_bottles", in.ReturnedFull},
		{"returned_empty_bottles", in.ReturnedEmpty},
		{"reported_damaged", in.ReportedDamaged},
	}
	for _, c := range counts {
		if c.v < 0 {
			return nil, apperr.Validation(c.field, "must be >= 0, got %d", c.v).WithEntity(entityRoute, in.RouteID)
		}
	}

	if s.cfg.Locker != nil {
		release, err := s.cfg.Locker.LockRoute(ctx, in.RouteID)
		if errors.Is(err, lock.ErrHeld) {
			s.cfg.Metrics.RecordLockContention()
			return nil, apperr.InvalidState(entityRoute, in.RouteID, "another check-in for this route is in progress")
		}
		if err != nil {
			return nil, err
		}
		defer release()
	}

	now := s.cfg.Now().UTC()
	var (
		m      *model.RouteManifest
		res    reconcile.Result
		debtID uint64
	)
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		m, err = s.repos.Routes.GetByIDTx(ctx, tx, in.RouteID)
		if errors.Is(err, repository.ErrRouteNotFound) {
			return apperr.NotFound(entityRoute, in.RouteID)
		}
		if err != nil {
			return err
		}
		if m.AuditStatus.Terminal() {
			return apperr.InvalidState(entityRoute, m.ID, "route was already settled as %s", m.AuditStatus)
		}
		if m.AuditStatus != model.StatusInProgress {
			return apperr.InvalidState(entityRoute, m.ID, "route is %s; check-in requires %s", m.AuditStatus, model.StatusInProgress)
		}
		before := m.Snapshot()

		prices, err := s.priceBook(ctx, tx, in.Sales)
		if err != nil {
			return err
		}
		res, err = reconcile.Run(reconcile.Input{
			InitialFull:      m.InitialFullBottles,
			InitialEmpty:     m.InitialEmptyBottles,
			ReturnedFull:     in.ReturnedFull,
			ReturnedEmpty:    in.ReturnedEmpty,
			ReportedDamaged:  in.ReportedDamaged,
			EvidenceVerified: in.EvidenceVerified,
			BottlePrice:      s.cfg.BottlePrice,
			Sales:            in.Sales,
			Prices:           prices,
		})
		if err != nil {
			if ae, ok := apperr.As(err); ok {
				return ae.WithEntity(entityRoute, m.ID)
			}
			return err
		}
		if !m.AuditStatus.CanTransition(res.Status) {
			return apperr.InvalidState(entityRoute, m.ID, "cannot move route from %s to %s", m.AuditStatus, res.Status)
		}

		m.ReturnedFull = sql.NullInt64{Int64: int64(in.ReturnedFull), Valid: true}
		m.ReturnedEmpty = sql.NullInt64{Int64: int64(in.ReturnedEmpty), Valid: true}
		m.ReportedDamaged = sql.NullInt64{Int64: int64(in.ReportedDamaged), Valid: true}
		m.Notes = nullString(in.Notes)
		m.EvidenceVerified = in.EvidenceVerified
		m.CheckinAt = sql.NullTime{Time: now, Valid: true}
		m.CheckinBy = sql.NullInt64{Int64: int64(in.ActorID), Valid: true}
		m.AuditStatus = res.Status
		m.DebtAmount = res.Debt
		m.Strategy = sql.NullString{String: string(res.Strategy), Valid: true}
		m.Delta = sql.NullInt64{Int64: int64(res.Delta), Valid: true}
		m.Message = sql.NullString{String: res.Message, Valid: true}

		lines := make([]model.SalesDetail, 0, len(res.Lines))
		for _, l := range res.Lines {
			lines = append(lines, model.SalesDetail{
				RouteID:   m.ID,
				ClientID:  l.ClientID,
				Quantity:  l.Quantity,
				UnitPrice: l.UnitPrice,
				Subtotal:  l.Subtotal,
			})
		}
		if err := s.repos.Sales.ReplaceForRouteTx(ctx, tx, m.ID, lines); err != nil {
			return err
		}

		if err := s.repos.Routes.CompleteCheckInTx(ctx, tx, m, model.StatusInProgress); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return apperr.InvalidState(entityRoute, m.ID, "route was settled by a concurrent request")
			}
			return err
		}

		// Only an inventory shortfall is a penalty; a sales-based total is
		// money to collect and stays on the manifest.
		if res.Strategy == reconcile.InventoryParityName && res.Debt.IsPositive() {
			d := &model.DebtRecord{
				RouteID:   m.ID,
				Amount:    res.Debt,
				Status:    model.DebtPending,
				Notes:     nullString(res.Message),
				CreatedAt: now,
			}
			if err := s.repos.Debts.CreateTx(ctx, tx, d); err != nil {
				return err
			}
			debtID = d.ID
		}

		return recordAudit(ctx, tx, s.repos.Audits, now, auditEntry{
			Meta:       in.RequestMeta,
			Action:     model.ActionRouteCheckin,
			EntityType: model.EntityRoute,
			EntityID:   m.ID,
			Old:        before,
			New:        m.Snapshot(),
			Notes:      res.Message,
		})
	})
	if err != nil {
		return nil, err
	}

	s.cfg.Metrics.RecordCheckIn(string(res.Strategy), string(res.Status), res.Debt)
	s.log.Info("route settled",
		zap.Uint64("route_id", m.ID),
		zap.String("strategy", string(res.Strategy)),
		zap.String("status", string(res.Status)),
		zap.String("debt_amount", res.DebtString()),
		zap.Int("delta", res.Delta),
		zap.Int("skipped_clients", len(res.SkippedClients)),
	)
	s.publishSettled(ctx, m, res, in.ActorID, now)

	return &CheckInResult{
		RouteID:        m.ID,
		Status:         res.Status,
		DebtAmount:     res.Debt,
		Message:        res.Message,
		Delta:          res.Delta,
		Strategy:       res.Strategy,
		SkippedClients: res.SkippedClients,
		DebtID:         debtID,
	}, nil
}

// priceBook loads the pricing data of every client named in sales.
func (s *RouteService) priceBook(ctx context.Context, tx *sql.Tx, sales []reconcile.SaleLine) (reconcile.PriceBook, error) {
	if len(sales) == 0 {
		return nil, nil
	}
	seen := make(map[uint64]bool, len(sales))
	ids := make([]uint64, 0, len(sales))
	for _, l := range sales {
		if !seen[l.ClientID] {
			seen[l.ClientID] = true
			ids = append(ids, l.ClientID)
		}
	}
	specials, err := s.repos.Clients.SpecialPricesTx(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	book := make(reconcile.PriceBook, len(specials))
	for id, p := range specials {
		book[id] = reconcile.ClientPrice{Special: p}
	}
	return book, nil
}

// publishSettled emits the settlement event.  Failures are logged and
// counted; the check-in itself has already committed.
func (s *RouteService) publishSettled(ctx context.Context, m *model.RouteManifest, res reconcile.Result, actor uint64, at time.Time) {
	if s.cfg.Publisher == nil {
		return
	}
	ev := queue.RouteSettledEvent{
		RouteID:    m.ID,
		PlantID:    s.cfg.PlantID,
		DriverID:   m.DriverID,
		TruckID:    m.TruckID,
		RouteDate:  m.RouteDate.Format("2006-01-02"),
		Status:     string(res.Status),
		Strategy:   string(res.Strategy),
		DebtAmount: res.DebtString(),
		Delta:      res.Delta,
		Message:    res.Message,
		SettledBy:  actor,
		SettledAt:  at.Format(time.RFC3339),
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.cfg.Publisher.PublishRouteSettled(pctx, ev); err != nil {
		s.cfg.Metrics.RecordPublishFailure()
		s.log.Warn("route settled event not published", zap.Uint64("route_id", m.ID), zap.Error(err))
	}
}

// RouteDetail is a manifest with its sales lines and debts.
type RouteDetail struct {
	Route *model.RouteManifest
	Sales []model.SalesDetail
	Debts []model.DebtRecord
}

// Get returns a manifest with its sales lines and debt records.
func (s *RouteService) Get(ctx context.Context, id uint64) (*RouteDetail, error) {
	m, err := s.repos.Routes.GetByID(ctx, id)
	if errors.Is(err, repository.ErrRouteNotFound) {
		return nil, apperr.NotFound(entityRoute, id)
	}
	if err != nil {
		return nil, err
	}
	sales, err := s.repos.Sales.ListByRoute(ctx, id)
	if err != nil {
		return nil, err
	}
	debts, err := s.repos.Debts.ListByRoute(ctx, id)
	if err != nil {
		return nil, err
	}
	return &RouteDetail{Route: m, Sales: sales, Debts: debts}, nil
}

// ListByDate returns the manifests dispatched on day; the zero time means
// today.
func (s *RouteService) ListByDate(ctx context.Context, day time.Time) ([]model.RouteManifest, error) {
	if day.IsZero() {
		day = s.cfg.Now()
	}
	return s.repos.Routes.ListByDate(ctx, today(day))
}

// AuditTrail returns the audit entries recorded for a route.
func (s *RouteService) AuditTrail(ctx context.Context, id uint64) ([]model.AuditLog, error) {
	if _, err := s.repos.Routes.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrRouteNotFound) {
			return nil, apperr.NotFound(entityRoute, id)
		}
		return nil, err
	}
	return s.repos.Audits.ListByEntity(ctx, model.EntityRoute, id)
}
