package handler

import (
	"time"

	"github.com/waterlog/routeledger/internal/model"
)

type routeView struct {
	ID                  uint64     `json:"id"`
	DriverID            uint64     `json:"driver_id"`
	TruckID             uint64     `json:"truck_id"`
	RouteDate           string     `json:"route_date"`
	InitialFullBottles  int        `json:"initial_full_bottles"`
	InitialEmptyBottles int        `json:"initial_empty_bottles"`
	CheckoutAt          time.Time  `json:"checkout_at"`
	CheckoutBy          uint64     `json:"checkout_by"`
	ReturnedFull        *int64     `json:"returned_full_bottles"`
	ReturnedEmpty       *int64     `json:"returned_empty_bottles"`
	ReportedDamaged     *int64     `json:"reported_damaged"`
	Notes               *string    `json:"notes"`
	EvidenceVerified    bool       `json:"evidence_verified"`
	CheckinAt           *time.Time `json:"checkin_at"`
	CheckinBy           *int64     `json:"checkin_by"`
	AuditStatus         string     `json:"audit_status"`
	DebtAmount          string     `json:"debt_amount"`
	Strategy            *string    `json:"strategy"`
	Delta               *int64     `json:"delta"`
	Message             *string    `json:"message"`
}

func newRouteView(m *model.RouteManifest) routeView {
	v := routeView{
		ID:                  m.ID,
		DriverID:            m.DriverID,
		TruckID:             m.TruckID,
		RouteDate:           m.RouteDate.Format(dateLayout),
		InitialFullBottles:  m.InitialFullBottles,
		InitialEmptyBottles: m.InitialEmptyBottles,
		CheckoutAt:          m.CheckoutAt.UTC(),
		CheckoutBy:          m.CheckoutBy,
		EvidenceVerified:    m.EvidenceVerified,
		AuditStatus:         string(m.AuditStatus),
		DebtAmount:          m.DebtAmount.StringFixed(2),
	}
	if m.ReturnedFull.Valid {
		v.ReturnedFull = &m.ReturnedFull.Int64
	}
	if m.ReturnedEmpty.Valid {
		v.ReturnedEmpty = &m.ReturnedEmpty.Int64
	}
	if m.ReportedDamaged.Valid {
		v.ReportedDamaged = &m.ReportedDamaged.Int64
	}
	if m.Notes.Valid {
		v.Notes = &m.Notes.String
	}
	if m.CheckinAt.Valid {
		t := m.CheckinAt.Time.UTC()
		v.CheckinAt = &t
	}
	if m.CheckinBy.Valid {
		v.CheckinBy = &m.CheckinBy.Int64
	}
	if m.Strategy.Valid {
		v.Strategy = &m.Strategy.String
	}
	if m.Delta.Valid {
		v.Delta = &m.Delta.Int64
	}
	if m.Message.Valid {
		v.Message = &m.Message.String
	}
	return v
}

type salesView struct {
	ID        uint64 `json:"id"`
	ClientID  uint64 `json:"client_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type debtView struct {
	ID              uint64     `json:"id"`
	RouteID         uint64     `json:"route_id"`
	Amount          string     `json:"amount"`
	Status          string     `json:"status"`
	Notes           *string    `json:"notes"`
	ResolutionNotes *string    `json:"resolution_notes"`
	CreatedAt       time.Time  `json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	ResolvedBy      *int64     `json:"resolved_by"`
}

func newDebtView(d *model.DebtRecord) debtView {
	v := debtView{
		ID:        d.ID,
		RouteID:   d.RouteID,
		Amount:    d.Amount.StringFixed(2),
		Status:    string(d.Status),
		CreatedAt: d.CreatedAt.UTC(),
	}
	if d.Notes.Valid {
		v.Notes = &d.Notes.String
	}
	if d.ResolutionNotes.Valid {
		v.ResolutionNotes = &d.ResolutionNotes.String
	}
	if d.ResolvedAt.Valid {
		t := d.ResolvedAt.Time.UTC()
		v.ResolvedAt = &t
	}
	if d.ResolvedBy.Valid {
		v.ResolvedBy = &d.ResolvedBy.Int64
	}
	return v
}

func debtViews(ds []model.DebtRecord) []debtView {
	out := make([]debtView, 0, len(ds))
	for i := range ds {
		out = append(out, newDebtView(&ds[i]))
	}
	return out
}

type clientView struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	Address      *string   `json:"address"`
	SpecialPrice *string   `json:"special_price"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

func newClientView(c *model.Client) clientView {
	v := clientView{ID: c.ID, Name: c.Name, Address: c.Address, IsActive: c.IsActive, CreatedAt: c.CreatedAt.UTC()}
	if c.SpecialPrice.Valid {
		s := c.SpecialPrice.Decimal.StringFixed(2)
		v.SpecialPrice = &s
	}
	return v
}

type truckView struct {
	ID       uint64  `json:"id"`
	Plate    string  `json:"plate"`
	Nickname string  `json:"nickname"`
	Brand    *string `json:"brand"`
	Model    *string `json:"model"`
	Year     *int    `json:"year"`
	IsActive bool    `json:"is_active"`
}

type userView struct {
	ID       uint64  `json:"id"`
	Username string  `json:"username"`
	FullName string  `json:"full_name"`
	Email    *string `json:"email"`
	Role     string  `json:"role"`
	IsActive bool    `json:"is_active"`
}

func newUserView(u *model.User) userView {
	return userView{ID: u.ID, Username: u.Username, FullName: u.FullName, Email: u.Email, Role: u.Role, IsActive: u.IsActive}
}

type auditView struct {
	ID         uint64    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	ActorID    uint64    `json:"actor_id"`
	Action     string    `json:"action"`
	OldValue   *rawJSON  `json:"old_value"`
	NewValue   *rawJSON  `json:"new_value"`
	IPAddress  *string   `json:"ip_address"`
	UserAgent  *string   `json:"user_agent"`
	Notes      *string   `json:"notes"`
}

// rawJSON embeds a stored JSON snapshot verbatim.
type rawJSON string

func (r rawJSON) MarshalJSON() ([]byte, error) { return []byte(r), nil }

func newAuditView(e *model.AuditLog) auditView {
	v := auditView{ID: e.ID, OccurredAt: e.OccurredAt.UTC(), ActorID: e.ActorID, Action: e.Action}
	if e.OldValue.Valid {
		r := rawJSON(e.OldValue.String)
		v.OldValue = &r
	}
	if e.NewValue.Valid {
		r := rawJSON(e.NewValue.String)
		v.NewValue = &r
	}
	if e.IPAddress.Valid {
		v.IPAddress = &e.IPAddress.String
	}
	if e.UserAgent.Valid {
		v.UserAgent = &e.UserAgent.String
	}
	if e.Notes.Valid {
		v.Notes = &e.Notes.String
	}
	return v
}
