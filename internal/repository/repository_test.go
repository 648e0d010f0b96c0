package repository

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waterlog/routeledger/internal/database"
	"github.com/waterlog/routeledger/internal/model"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

var seq int

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(database.Options{Driver: database.DriverSQLite})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, database.DriverSQLite))
	return db
}

func inTx(t *testing.T, db *sql.DB, fn func(tx *sql.Tx) error) error {
	t.Helper()
	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func seedDriver(t *testing.T, db *sql.DB, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, FullName: "Driver " + username, PasswordHash: "x", Role: model.RoleDriver, IsActive: true, CreatedAt: testNow}
	require.NoError(t, inTx(t, db, func(tx *sql.Tx) error {
		return NewUserRepo(db).CreateTx(context.Background(), tx, u)
	}))
	return u
}

func seedTruck(t *testing.T, db *sql.DB, plate string) *model.Truck {
	t.Helper()
	tr := &model.Truck{Plate: plate, Nickname: "La Blanca", IsActive: true, CreatedAt: testNow}
	require.NoError(t, inTx(t, db, func(tx *sql.Tx) error {
		return NewTruckRepo(db).CreateTx(context.Background(), tx, tr)
	}))
	return tr
}

func seedClient(t *testing.T, db *sql.DB, name string, special *decimal.Decimal, active bool) *model.Client {
	t.Helper()
	c := &model.Client{Name: name, IsActive: active, CreatedAt: testNow}
	if special != nil {
		c.SpecialPrice = decimal.NewNullDecimal(*special)
	}
	require.NoError(t, inTx(t, db, func(tx *sql.Tx) error {
		return NewClientRepo(db).CreateTx(context.Background(), tx, c)
	}))
	return c
}

func seedRoute(t *testing.T, db *sql.DB, initialFull int) *model.RouteManifest {
	t.Helper()
	seq++
	driver := seedDriver(t, db, fmt.Sprintf("driver%d", seq))
	truck := seedTruck(t, db, fmt.Sprintf("TRK-%03d", seq))
	m := &model.RouteManifest{
		DriverID:           driver.ID,
		TruckID:            truck.ID,
		RouteDate:          time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		InitialFullBottles: initialFull,
		CheckoutAt:         testNow,
		CheckoutBy:         1,
		AuditStatus:        model.StatusInProgress,
		DebtAmount:         decimal.Zero,
	}
	require.NoError(t, inTx(t, db, func(tx *sql.Tx) error {
		return NewRouteRepo(db).CreateTx(context.Background(), tx, m)
	}))
	return m
}

func TestRouteRepoLifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewRouteRepo(db)
	ctx := context.Background()

	m := seedRoute(t, db, 100)
	require.NotZero(t, m.ID)
	assert.Equal(t, model.StatusInProgress, m.AuditStatus)
	assert.False(t, m.CheckedIn())
	assert.False(t, m.ReturnedFull.Valid)

	got, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.InitialFullBottles)
	assert.Equal(t, 0, got.InitialEmptyBottles)
	assert.True(t, got.RouteDate.Equal(m.RouteDate))

	checkin := testNow.Add(8 * time.Hour)
	got.ReturnedFull = sql.NullInt64{Int64: 30, Valid: true}
	got.ReturnedEmpty = sql.NullInt64{Int64: 65, Valid: true}
	got.ReportedDamaged = sql.NullInt64{Int64: 0, Valid: true}
	got.CheckinAt = sql.NullTime{Time: checkin, Valid: true}
	got.CheckinBy = sql.NullInt64{Int64: 2, Valid: true}
	got.AuditStatus = model.StatusLockedDebt
	got.DebtAmount = decimal.RequireFromString("300.00")
	got.Strategy = sql.NullString{String: "INVENTORY_PARITY", Valid: true}
	got.Delta = sql.NullInt64{Int64: 5, Valid: true}

	require.NoError(t, inTx(t, db, func(tx *sql.Tx) error {
		return repo.CompleteCheckInTx(ctx, tx, got, model.StatusInProgress)
	}))

	after, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusLockedDebt, after.AuditStatus)
	assert.True(t, after.CheckedIn())
	assert.Equal(t, int64(65), after.ReturnedEmpty.Int64)
	assert.True(t, decimal.RequireFromString("300").Equal(after.DebtAmount))
	assert.Equal(t, int64(5), after.Delta.Int64)

	// The status guard rejects a second settlement.
	err = inTx(t, db, func(tx *sql.Tx) error {
		return repo.CompleteCheckInTx(ctx, tx, got, model.StatusInProgress)
	})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrRouteNotFound)
}

func TestRouteRepoListByDate(t *testing.T) {
	db := newTestDB(t)
	repo := NewRouteRepo(db)
	m := seedRoute(t, db, 10)

	list, err := repo.ListByDate(context.Background(), time.Date(2026, 3, 14, 17, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, m.ID, list[0].ID)

	list, err = repo.ListByDate(context.Background(), time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSalesRepoReplacesWholeSet(t *testing.T) {
	db := newTestDB(t)
	repo := NewSalesRepo(db)
	ctx := context.Background()
	m := seedRoute(t, db, 100)
	a := seedClient(t, db, "Tienda A", nil, true)
	b := seedClient(t, db, "Tienda B", nil, true)

	price := decimal.RequireFromString("60")
	first := []model.SalesDetail{
		{ClientID: a.ID, Quantity: 10, UnitPrice: price, Subtotal: decimal.RequireFromString("600")},
		{ClientID: b.ID, Quantity: 5, UnitPrice: price, Subtotal: decimal.RequireFromString("300")},
	}
	require.NoError(t, inTx(t, db, func(tx *sql.Tx) error { return repo.ReplaceForRouteTx(ctx, tx, m.ID, first) }))

	lines, err := repo.ListByRoute(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	second := []model.SalesDetail{
		{ClientID: b.ID, Quantity: 7, UnitPrice: decimal.RequireFromString("45.50"), Subtotal: decimal.RequireFromString("318.50")},
	}
	require.NoError(t, inTx(t, db, func(tx *sql.Tx) error { return repo.ReplaceForRouteTx(ctx, tx, m.ID, second) }))

	lines, err = repo.ListByRoute(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, b.ID, lines[0].ClientID)
	assert.Equal(t, m.ID, lines[0].RouteID)
	assert.Equal(t, 7, lines[0].Quantity)
	assert.Equal(t, "318.50", lines[0].Subtotal.StringFixed(2))

	require.NoError(t, inTx(t, db, func(tx *sql.Tx) error { return repo.ReplaceForRouteTx(ctx, tx, m.ID, nil) }))
	lines, err = repo.ListByRoute(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestClientRepoSpecialPrices(t *testing.T) {
	db := newTestDB(t)
	repo := NewClientRepo(db)
	ctx := context.Background()

	special := decimal.RequireFromString("45.50")
	plain := seedClient(t, db, "Plain", nil, true)
	vip := seedClient(t, db, "Ingenio", &special, true)
	gone := seedClient(t, db, "Closed", &special, true)
	require.NoError(t, inTx(t, db, func(tx *sql.Tx) error { return repo.DeactivateTx(ctx, tx, gone.ID) }))

	var prices map[uint64]decimal.NullDecimal
	require.NoError(t, inTx(t, db, func(tx *sql.Tx) error {
		var err error
		prices, err = repo.SpecialPricesTx(ctx, tx, []uint64{plain.ID, vip.ID, gone.ID, 999})
		return err
	}))
	require.Len(t, prices, 3)
	assert.False(t, prices[plain.ID].Valid)
	assert.True(t, prices[vip.ID].Valid)
	assert.Equal(t, "45.50", prices[vip.ID].Decimal.StringFixed(2))
	assert.True(t, prices[gone.ID].Valid, "inactive clients still price")
	_, known := prices[999]
	assert.False(t, known)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	got, err := repo.GetByID(ctx, gone.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	err = inTx(t, db, func(tx *sql.Tx) error { return repo.DeactivateTx(ctx, tx, 999) })
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestClientRepoUpdate(t *testing.T) {
	db := newTestDB(t)
	repo := NewClientRepo(db)
	ctx := context.Background()
	c := seedClient(t, db, "Tienda", nil, true)

	addr := "Av. Juarez 12"
	c.Name = "Tienda Centro"
	c.Address = &addr
	c.SpecialPrice = decimal.NewNullDecimal(decimal.RequireFromString("55"))
	require.NoError(t, inTx(t, db, func(tx *sql.Tx) error { return repo.UpdateTx(ctx, tx, c) }))

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tienda Centro", got.Name)
	require.NotNil(t, got.Address)
	assert.Equal(t, addr, *got.Address)
	assert.Equal(t, "55.00", got.SpecialPrice.Decimal.StringFixed(2))
}

func TestTruckRepoDuplicatePlate(t *testing.T) {
	db := newTestDB(t)
	tr := seedTruck(t, db, "abc-123")
	assert.Equal(t, "ABC-123", tr.Plate)
	assert.True(t, tr.IsActive)

	err := inTx(t, db, func(tx *sql.Tx) error {
		return NewTruckRepo(db).CreateTx(context.Background(), tx, &model.Truck{Plate: "ABC-123", Nickname: "Dup", IsActive: true, CreatedAt: testNow})
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	list, err := NewTruckRepo(db).ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUserRepoUsername(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepo(db)
	u := seedDriver(t, db, "  Juan ")
	assert.Equal(t, "juan", u.Username)

	got, err := repo.GetByUsername(context.Background(), "JUAN")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, got.IsDriver())

	err = inTx(t, db, func(tx *sql.Tx) error {
		return repo.CreateTx(context.Background(), tx, &model.User{Username: "juan", FullName: "Other", PasswordHash: "x", Role: model.RoleAdmin, IsActive: true, CreatedAt: testNow})
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = repo.GetByUsername(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)

	drivers, err := repo.ListActiveByRole(context.Background(), model.RoleDriver)
	require.NoError(t, err)
	assert.Len(t, drivers, 1)
}

func TestDebtRepoResolve(t *testing.T) {
	db := newTestDB(t)
	repo := NewDebtRepo(db)
	ctx := context.Background()
	m := seedRoute(t, db, 10)

	d := &model.DebtRecord{RouteID: m.ID, Amount: decimal.RequireFromString("120.00"), Status: model.DebtPending, CreatedAt: testNow}
	require.NoError(t, inTx(t, db, func(tx *sql.Tx) error { return repo.CreateTx(ctx, tx, d) }))
	require.NotZero(t, d.ID)

	notes := sql.NullString{String: "paid at window", Valid: true}
	require.NoError(t, inTx(t, db, func(tx *sql.Tx) error {
		return repo.ResolveTx(ctx, tx, d.ID, model.DebtPending, model.DebtPaid, notes,
			sql.NullInt64{Int64: 3, Valid: true}, sql.NullTime{Time: testNow.Add(time.Hour), Valid: true})
	}))

	err := inTx(t, db, func(tx *sql.Tx) error {
		return repo.ResolveTx(ctx, tx, d.ID, model.DebtPending, model.DebtForgiven, notes, sql.NullInt64{}, sql.NullTime{})
	})
	assert.ErrorIs(t, err, ErrConflict)

	paid, err := repo.ListByStatus(ctx, model.DebtPaid)
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, int64(3), paid[0].ResolvedBy.Int64)
	assert.True(t, paid[0].ResolvedAt.Valid)

	pending, err := repo.ListByStatus(ctx, model.DebtPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	all, err := repo.ListByRoute(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	err = inTx(t, db, func(tx *sql.Tx) error {
		_, err := repo.GetByIDTx(ctx, tx, 404)
		return err
	})
	assert.ErrorIs(t, err, ErrDebtNotFound)
}

func TestAuditRepoAppendsInOrder(t *testing.T) {
	db := newTestDB(t)
	repo := NewAuditRepo(db)
	ctx := context.Background()

	for _, action := range []string{model.ActionRouteCheckout, model.ActionRouteCheckin} {
		e := &model.AuditLog{
			OccurredAt: testNow,
			ActorID:    1,
			Action:     action,
			EntityType: model.EntityRoute,
			EntityID:   42,
			NewValue:   sql.NullString{String: `{"id":42}`, Valid: true},
			IPAddress:  sql.NullString{String: "10.0.0.5", Valid: true},
		}
		require.NoError(t, inTx(t, db, func(tx *sql.Tx) error { return repo.InsertTx(ctx, tx, e) }))
		assert.NotZero(t, e.ID)
	}

	trail, err := repo.ListByEntity(ctx, model.EntityRoute, 42)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, model.ActionRouteCheckout, trail[0].Action)
	assert.Equal(t, model.ActionRouteCheckin, trail[1].Action)
	assert.False(t, trail[0].OldValue.Valid)
	assert.JSONEq(t, `{"id":42}`, trail[1].NewValue.String)

	other, err := repo.ListByEntity(ctx, model.EntityDebt, 42)
	require.NoError(t, err)
	assert.Empty(t, other)
}
