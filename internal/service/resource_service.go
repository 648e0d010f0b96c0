package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/waterlog/routeledger/internal/apperr"
	"github.com/waterlog/routeledger/internal/model"
	"github.com/waterlog/routeledger/internal/repository"
	"github.com/waterlog/routeledger/internal/utils"
)

// ResourceService maintains the reference data routes point at: clients,
// trucks and drivers.
type ResourceService struct {
	db         *sql.DB
	repos      Repos
	bcryptCost int
	log        *zap.Logger
	now        func() time.Time
}

// NewResourceService constructs a ResourceService.  A bcryptCost of zero
// means bcrypt.DefaultCost.
func NewResourceService(db *sql.DB, repos Repos, bcryptCost int, log *zap.Logger) *ResourceService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ResourceService{db: db, repos: repos, bcryptCost: bcryptCost, log: log.Named("resources"), now: time.Now}
}

func clientSnapshot(c *model.Client) map[string]any {
	snap := map[string]any{
		"id":        c.ID,
		"name":      c.Name,
		"is_active": c.IsActive,
	}
	if c.Address != nil {
		snap["address"] = *c.Address
	}
	if c.SpecialPrice.Valid {
		snap["special_price"] = c.SpecialPrice.Decimal.StringFixed(2)
	}
	return snap
}

// ClientInput carries the editable fields of a client.
type ClientInput struct {
	RequestMeta
	Name         string
	Address      *string
	SpecialPrice decimal.NullDecimal
}

func (in ClientInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Validation("name", "must not be empty")
	}
	if in.SpecialPrice.Valid && in.SpecialPrice.Decimal.IsNegative() {
		return apperr.Validation("special_price", "must be >= 0, got %s", in.SpecialPrice.Decimal)
	}
	return nil
}

// CreateClient registers a new active client.
func (s *ResourceService) CreateClient(ctx context.Context, in ClientInput) (*model.Client, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	c := &model.Client{
		Name:         strings.TrimSpace(in.Name),
		Address:      in.Address,
		SpecialPrice: in.SpecialPrice,
		IsActive:     true,
		CreatedAt:    now,
	}
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.repos.Clients.CreateTx(ctx, tx, c); err != nil {
			return err
		}
		return recordAudit(ctx, tx, s.repos.Audits, now, auditEntry{
			Meta:       in.RequestMeta,
			Action:     model.ActionClientCreated,
			EntityType: model.EntityClient,
			EntityID:   c.ID,
			New:        clientSnapshot(c),
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("client created", zap.Uint64("client_id", c.ID), zap.String("name", c.Name))
	return c, nil
}

// UpdateClient overwrites the editable fields of client id.  Prices already
// captured on sales details are not affected.
func (s *ResourceService) UpdateClient(ctx context.Context, id uint64, in ClientInput) (*model.Client, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	var c *model.Client
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		c, err = s.repos.Clients.GetByIDTx(ctx, tx, id)
		if errors.Is(err, repository.ErrClientNotFound) {
			return apperr.NotFound("client", id)
		}
		if err != nil {
			return err
		}
		before := clientSnapshot(c)
		c.Name = strings.TrimSpace(in.Name)
		c.Address = in.Address
		c.SpecialPrice = in.SpecialPrice
		if err := s.repos.Clients.UpdateTx(ctx, tx, c); err != nil {
			if errors.Is(err, repository.ErrClientNotFound) {
				return apperr.NotFound("client", id)
			}
			return err
		}
		return recordAudit(ctx, tx, s.repos.Audits, now, auditEntry{
			Meta:       in.RequestMeta,
			Action:     model.ActionClientUpdated,
			EntityType: model.EntityClient,
			EntityID:   c.ID,
			Old:        before,
			New:        clientSnapshot(c),
		})
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// DeactivateClient hides a client from the active list.  Historical sales
// keep pointing at it.
func (s *ResourceService) DeactivateClient(ctx context.Context, meta RequestMeta, id uint64) error {
	now := s.now().UTC()
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		c, err := s.repos.Clients.GetByIDTx(ctx, tx, id)
		if errors.Is(err, repository.ErrClientNotFound) {
			return apperr.NotFound("client", id)
		}
		if err != nil {
			return err
		}
		if !c.IsActive {
			return apperr.InvalidState("client", id, "client is already inactive")
		}
		before := clientSnapshot(c)
		if err := s.repos.Clients.DeactivateTx(ctx, tx, id); err != nil {
			return err
		}
		c.IsActive = false
		return recordAudit(ctx, tx, s.repos.Audits, now, auditEntry{
			Meta:       meta,
			Action:     model.ActionClientDeactivated,
			EntityType: model.EntityClient,
			EntityID:   id,
			Old:        before,
			New:        clientSnapshot(c),
		})
	})
}

// GetClient returns a client regardless of its active flag.
func (s *ResourceService) GetClient(ctx context.Context, id uint64) (*model.Client, error) {
	c, err := s.repos.Clients.GetByID(ctx, id)
	if errors.Is(err, repository.ErrClientNotFound) {
		return nil, apperr.NotFound("client", id)
	}
	return c, err
}

// ListClients returns active clients.
func (s *ResourceService) ListClients(ctx context.Context) ([]model.Client, error) {
	return s.repos.Clients.ListActive(ctx)
}

// TruckInput describes a truck to register.
type TruckInput struct {
	RequestMeta
	Plate    string
	Nickname string
	Brand    *string
	Model    *string
	Year     *int
}

// CreateTruck registers an active truck.  Plates are unique.
func (s *ResourceService) CreateTruck(ctx context.Context, in TruckInput) (*model.Truck, error) {
	if strings.TrimSpace(in.Plate) == "" {
		return nil, apperr.Validation("plate", "must not be empty")
	}
	now := s.now().UTC()
	t := &model.Truck{
		Plate:     in.Plate,
		Nickname:  strings.TrimSpace(in.Nickname),
		Brand:     in.Brand,
		Model:     in.Model,
		Year:      in.Year,
		IsActive:  true,
		CreatedAt: now,
	}
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.repos.Trucks.CreateTx(ctx, tx, t); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperr.Conflict("truck", "plate", "plate %s is already registered", t.Plate)
			}
			return err
		}
		return recordAudit(ctx, tx, s.repos.Audits, now, auditEntry{
			Meta:       in.RequestMeta,
			Action:     model.ActionTruckCreated,
			EntityType: model.EntityTruck,
			EntityID:   t.ID,
			New:        map[string]any{"id": t.ID, "plate": t.Plate, "nickname": t.Nickname},
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("truck created", zap.Uint64("truck_id", t.ID), zap.String("plate", t.Plate))
	return t, nil
}

// ListTrucks returns active trucks.
func (s *ResourceService) ListTrucks(ctx context.Context) ([]model.Truck, error) {
	return s.repos.Trucks.ListActive(ctx)
}

// DriverInput describes a driver account to create.
type DriverInput struct {
	RequestMeta
	Username string
	FullName string
	Email    *string
	Password string
}

// CreateDriver creates an active user with the CHOFER role.
func (s *ResourceService) CreateDriver(ctx context.Context, in DriverInput) (*model.User, error) {
	if strings.TrimSpace(in.Username) == "" {
		return nil, apperr.Validation("username", "must not be empty")
	}
	if strings.TrimSpace(in.FullName) == "" {
		return nil, apperr.Validation("full_name", "must not be empty")
	}
	if len(in.Password) < 8 {
		return nil, apperr.Validation("password", "must be at least 8 characters")
	}
	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u := &model.User{
		Username:     in.Username,
		FullName:     strings.TrimSpace(in.FullName),
		Email:        in.Email,
		PasswordHash: hash,
		Role:         model.RoleDriver,
		IsActive:     true,
		CreatedAt:    now,
	}
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.repos.Users.CreateTx(ctx, tx, u); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperr.Conflict("user", "username", "username %s is taken", strings.ToLower(strings.TrimSpace(in.Username)))
			}
			return err
		}
		return recordAudit(ctx, tx, s.repos.Audits, now, auditEntry{
			Meta:       in.RequestMeta,
			Action:     model.ActionDriverCreated,
			EntityType: model.EntityUser,
			EntityID:   u.ID,
			New:        map[string]any{"id": u.ID, "username": u.Username, "full_name": u.FullName, "role": u.Role},
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("driver created", zap.Uint64("user_id", u.ID), zap.String("username", u.Username))
	return u, nil
}

// ListDrivers returns active CHOFER users.
func (s *ResourceService) ListDrivers(ctx context.Context) ([]model.User, error) {
	return s.repos.Users.ListActiveByRole(ctx, model.RoleDriver)
}
