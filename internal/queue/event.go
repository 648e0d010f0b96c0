// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the background consumer.
package queue

// RouteSettledQueue is the durable queue settlement events are sent to.
const RouteSettledQueue = "route.settled"

// RouteSettledEvent is published after a check-in commits.  It contains
// enough information for downstream consumers to log, notify, or feed
// accounting without querying the primary database.
type RouteSettledEvent struct {
	RouteID    uint64 `json:"route_id"`
	PlantID    string `json:"plant_id,omitempty"`
	DriverID   uint64 `json:"driver_id"`
	TruckID    uint64 `json:"truck_id"`
	RouteDate  string `json:"route_date"`
	Status     string `json:"status"`
	Strategy   string `json:"strategy"`
	DebtAmount string `json:"debt_amount"`
	Delta      int    `json:"delta"`
	Message    string `json:"message"`
	SettledBy  uint64 `json:"settled_by"`
	SettledAt  string `json:"settled_at"`
}
