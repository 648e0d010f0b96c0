// Package service implements the route ledger use cases on top of the
// repositories: dispatching and settling routes, resolving debts and
// maintaining clients, trucks and drivers.  Every mutating operation runs
// in one database transaction together with its audit entry.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/waterlog/routeledger/internal/model"
	"github.com/waterlog/routeledger/internal/queue"
	"github.com/waterlog/routeledger/internal/repository"
)

// EventPublisher sends settlement events to the broker.
type EventPublisher interface {
	PublishRouteSettled(ctx context.Context, ev queue.RouteSettledEvent) error
}

// RouteLocker serializes check-ins of one route.  LockRoute returns
// lock.ErrHeld when another request holds the route.
type RouteLocker interface {
	LockRoute(ctx context.Context, routeID uint64) (release func(), err error)
}

// Repos bundles the repositories the services share.
type Repos struct {
	Routes  *repository.RouteRepo
	Sales   *repository.SalesRepo
	Clients *repository.ClientRepo
	Trucks  *repository.TruckRepo
	Users   *repository.UserRepo
	Debts   *repository.DebtRepo
	Audits  *repository.AuditRepo
}

// NewRepos wires every repository to db.
func NewRepos(db *sql.DB) Repos {
	return Repos{
		Routes:  repository.NewRouteRepo(db),
		Sales:   repository.NewSalesRepo(db),
		Clients: repository.NewClientRepo(db),
		Trucks:  repository.NewTruckRepo(db),
		Users:   repository.NewUserRepo(db),
		Debts:   repository.NewDebtRepo(db),
		Audits:  repository.NewAuditRepo(db),
	}
}

// RequestMeta identifies who performed an action and from where.
type RequestMeta struct {
	ActorID   uint64
	IPAddress string
	UserAgent string
}

// withTx runs fn inside a transaction and commits when it returns nil.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// auditEntry is the input of recordAudit.  Old and New are snapshots that
// get stored as JSON; nil means no value.
type auditEntry struct {
	Meta       RequestMeta
	Action     string
	EntityType string
	EntityID   uint64
	Old        map[string]any
	New        map[string]any
	Notes      string
}

func recordAudit(ctx context.Context, tx *sql.Tx, audits *repository.AuditRepo, at time.Time, e auditEntry) error {
	oldValue, err := snapshotJSON(e.Old)
	if err != nil {
		return err
	}
	newValue, err := snapshotJSON(e.New)
	if err != nil {
		return err
	}
	entry := &model.AuditLog{
		OccurredAt: at,
		ActorID:    e.Meta.ActorID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		OldValue:   oldValue,
		NewValue:   newValue,
		IPAddress:  nullString(e.Meta.IPAddress),
		UserAgent:  nullString(e.Meta.UserAgent),
		Notes:      nullString(e.Notes),
	}
	if err := audits.InsertTx(ctx, tx, entry); err != nil {
		return fmt.Errorf("audit %s: %w", e.Action, err)
	}
	return nil
}

func snapshotJSON(v map[string]any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal snapshot: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// today returns the UTC midnight of t.
func today(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
