package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleMerchant Role = "merchant"
	RoleOperator Role = "operator"
)

type EventType string

const (
	EventOrderCreated       EventType = "order_created"
	EventOrderStatusUpdated EventType = "order_status_updated"
	EventDeliveryAssigned   EventType = "delivery_assigned"
)

type OrderStatus string

const (
	StatusPending        OrderStatus = "pending"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusPreparing      OrderStatus = "preparing"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusDelivered      OrderStatus = "delivered"
	StatusCancelled      OrderStatus = "cancelled"
	StatusRejected       OrderStatus = "rejected"
)

// ParseOrderStatus normalizes a wire status string ("Out for Delivery",
// "DELIVERED") to its canonical form.
func ParseOrderStatus(s string) OrderStatus {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	return OrderStatus(normalized)
}

// TerminalForPayout reports whether an order's financial effects
// (payout, commission) are finalized at this status.
func (s OrderStatus) TerminalForPayout() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}

type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      EventType `json:"type"`
	RelatedID string    `json:"related_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// RawEvent is a wire event exactly as the transport delivered it.
type RawEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// CacheKey names one independently invalidatable read-model.
type CacheKey string

type EffectKind int

const (
	EffectInvalidate EffectKind = iota
	EffectAlertStart
	EffectAlertStop
)

// SideEffect is a tagged-variant effect descriptor computed by the
// classifier. Key is set for EffectInvalidate, OrderID for the alert kinds.
type SideEffect struct {
	Kind    EffectKind
	Key     CacheKey
	OrderID string
}

func InvalidateEffect(key CacheKey) SideEffect {
	return SideEffect{Kind: EffectInvalidate, Key: key}
}

func AlertStartEffect(orderID string) SideEffect {
	return SideEffect{Kind: EffectAlertStart, OrderID: orderID}
}

func AlertStopEffect(orderID string) SideEffect {
	return SideEffect{Kind: EffectAlertStop, OrderID: orderID}
}

// Classified is the outcome of classifying one raw event.
type Classified struct {
	Notification Notification
	Effects      []SideEffect
}
