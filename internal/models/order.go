package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus tracks the lifecycle of an order session.
// Transitions are owned exclusively by the order service:
// open -> finalizing -> closed.
type OrderStatus string

const (
	OrderStatusOpen       OrderStatus = "open"
	OrderStatusFinalizing OrderStatus = "finalizing"
	OrderStatusClosed     OrderStatus = "closed"
)

// OrderItemRequest represents an incoming request to add one configured
// product to an order. Selected option ids are treated as a set: duplicates
// are ignored, selecting an option twice never means quantity two.
type OrderItemRequest struct {
	ProductID         string   `json:"productId"`
	Notes             string   `json:"notes,omitempty"`
	SelectedOptionIDs []string `json:"selectedOptionIds"`
}

// OptionSelection is one chosen option on a validated order item.
type OptionSelection struct {
	OptionID   string          `json:"optionId"`
	Name       string          `json:"name"`
	PriceDelta decimal.Decimal `json:"priceDelta"`
}

// GroupSelection holds the chosen options of a single modifier group,
// in the group's catalog order.
type GroupSelection struct {
	GroupID string            `json:"groupId"`
	Name    string            `json:"name"`
	Options []OptionSelection `json:"options"`
}

// OrderItem is one validated, priced, customized unit of a product.
// Created only by the order service and immutable afterwards.
type OrderItem struct {
	ID         string           `json:"id"`
	ProductID  string           `json:"productId"`
	LinePrice  decimal.Decimal  `json:"linePrice"`
	Selections []GroupSelection `json:"selections,omitempty"`
	Notes      string           `json:"notes,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// Order is a customer order session: an ordered sequence of items plus a
// running total. Item batches are applied atomically, never one by one.
type Order struct {
	ID         string          `json:"id"`
	Items      []OrderItem     `json:"items"`
	Total      decimal.Decimal `json:"total"`
	Status     OrderStatus     `json:"status"`
	CouponCode string          `json:"couponCode,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}
