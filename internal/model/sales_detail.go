package model

import "github.com/shopspring/decimal"

// SalesDetail is one client's purchase on a route, captured at check-in.
// UnitPrice is snapshotted at the moment of sale and never recomputed,
// even if the client's special price changes later.
//
// Fields:
//
//	ID        – primary key identifier.
//	RouteID   – owning route manifest.
//	ClientID  – client that bought.
//	Quantity  – bottles sold.
//	UnitPrice – effective unit price at the time of sale.
//	Subtotal  – Quantity × UnitPrice.
type SalesDetail struct {
	ID        uint64          // sales_details.id
	RouteID   uint64          // sales_details.route_id
	ClientID  uint64          // sales_details.client_id
	Quantity  int             // sales_details.quantity
	UnitPrice decimal.Decimal // sales_details.unit_price
	Subtotal  decimal.Decimal // sales_details.subtotal
}
