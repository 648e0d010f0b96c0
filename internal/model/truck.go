package model

import "time"

// Truck is a vehicle that can be checked out on a route.
type Truck struct {
	ID        uint64    // trucks.id
	Plate     string    // trucks.plate (unique)
	Nickname  string    // trucks.nickname, e.g. "La Blanca"
	Brand     *string   // trucks.brand (nullable)
	Model     *string   // trucks.model (nullable)
	Year      *int      // trucks.year (nullable)
	IsActive  bool      // trucks.is_active
	CreatedAt time.Time // trucks.created_at
	UpdatedAt time.Time // trucks.updated_at
}
