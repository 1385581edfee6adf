package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ordersync/internal/domain"
	"ordersync/pkg/logger"

	"github.com/google/uuid"
)

// Read-model cache key catalog. Every key a view depends on is named
// here; the invalidation tables below are the only place they are wired
// to events.
const (
	KeyOperatorDashboard domain.CacheKey = "operator:dashboard"
	KeyOperatorOrders    domain.CacheKey = "operator:orders"
	KeyOperatorRevenue   domain.CacheKey = "operator:revenue"
	KeyMerchantOrders    domain.CacheKey = "merchant:orders"
	KeyMerchantEarnings  domain.CacheKey = "merchant:earnings"
	KeyCustomerOrders    domain.CacheKey = "customer:orders"
	KeyGlobalOrders      domain.CacheKey = "orders"
)

var errEventNotRelevant = errors.New("event not relevant for session roles")

type keyBuilder func(orderID string) domain.CacheKey

func staticKey(key domain.CacheKey) keyBuilder {
	return func(string) domain.CacheKey { return key }
}

func orderKey(prefix string) keyBuilder {
	return func(orderID string) domain.CacheKey {
		return domain.CacheKey(prefix + ":" + orderID)
	}
}

// roleGlobal rows apply regardless of which roles the session holds.
const roleGlobal domain.Role = "global"

var invalidationTable = map[domain.EventType]map[domain.Role][]keyBuilder{
	domain.EventOrderCreated: {
		domain.RoleOperator: {staticKey(KeyOperatorDashboard), staticKey(KeyOperatorOrders), staticKey(KeyOperatorRevenue)},
		domain.RoleMerchant: {staticKey(KeyMerchantOrders), staticKey(KeyMerchantEarnings)},
		domain.RoleCustomer: {staticKey(KeyCustomerOrders), orderKey("customer:order_detail"), orderKey("customer:track")},
		roleGlobal:          {staticKey(KeyGlobalOrders)},
	},
	domain.EventOrderStatusUpdated: {
		domain.RoleOperator: {staticKey(KeyOperatorOrders)},
		domain.RoleMerchant: {staticKey(KeyMerchantOrders)},
		domain.RoleCustomer: {staticKey(KeyCustomerOrders), orderKey("customer:order_detail"), orderKey("customer:track")},
		roleGlobal:          {staticKey(KeyGlobalOrders)},
	},
	domain.EventDeliveryAssigned: {
		domain.RoleOperator: {staticKey(KeyOperatorDashboard), staticKey(KeyOperatorOrders)},
	},
}

// payoutTable lists the keys additionally invalidated once an order
// reaches a payout-terminal status.
var payoutTable = map[domain.Role][]keyBuilder{
	domain.RoleMerchant: {staticKey(KeyMerchantEarnings)},
	domain.RoleOperator: {staticKey(KeyOperatorRevenue)},
}

// Classifier maps raw inbound events to notifications plus side
// effects, scoped to the session's active roles.
type Classifier struct {
	roles   []domain.Role
	storeID string
	log     logger.Logger
}

func NewClassifier(roles []domain.Role, storeID string, log logger.Logger) *Classifier {
	return &Classifier{
		roles:   roles,
		storeID: storeID,
		log:     log,
	}
}

func (c *Classifier) Classify(raw domain.RawEvent) (*domain.Classified, error) {
	switch raw.Event {
	case "new_notification":
		return c.classifyNotification(raw.Data)
	case "new_order":
		return c.classifyNewOrder(raw.Data)
	case "order_status_update":
		return c.classifyStatusUpdate(raw.Data)
	case "delivery_assigned":
		return c.classifyDeliveryAssigned(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event %q", raw.Event)
	}
}

func (c *Classifier) classifyNotification(data json.RawMessage) (*domain.Classified, error) {
	var payload struct {
		ID        json.RawMessage `json:"id"`
		Title     string          `json:"title"`
		Message   string          `json:"message"`
		Type      string          `json:"type"`
		RelatedID json.RawMessage `json:"relatedId"`
		Read      bool            `json:"read"`
		CreatedAt time.Time       `json:"createdAt"`
	}
	c.decode(data, &payload)

	id := normalizeEntityID(payload.ID)
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := payload.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	relatedID := normalizeEntityID(payload.RelatedID)
	eventType := domain.EventType(payload.Type)

	return &domain.Classified{
		Notification: domain.Notification{
			ID:        id,
			Title:     payload.Title,
			Message:   payload.Message,
			Type:      eventType,
			RelatedID: relatedID,
			Read:      payload.Read,
			CreatedAt: createdAt,
		},
		Effects: c.invalidationsFor(eventType, relatedID, false),
	}, nil
}

func (c *Classifier) classifyNewOrder(data json.RawMessage) (*domain.Classified, error) {
	var payload struct {
		OrderID      json.RawMessage `json:"orderId"`
		FinalPrice   json.Number     `json:"finalPrice"`
		CustomerName string          `json:"customerName"`
		StoreID      json.RawMessage `json:"storeId"`
	}
	c.decode(data, &payload)

	orderID := normalizeEntityID(payload.OrderID)
	customer := payload.CustomerName
	if customer == "" {
		customer = "a customer"
	}
	amount := payload.FinalPrice.String()
	if amount == "" {
		amount = "0"
	}

	effects := c.invalidationsFor(domain.EventOrderCreated, orderID, false)
	if c.hasRole(domain.RoleMerchant) && c.ownStore(payload.StoreID) {
		effects = append(effects, domain.AlertStartEffect(orderID))
	}

	return &domain.Classified{
		Notification: domain.Notification{
			ID:        uuid.NewString(),
			Title:     "New Order Received",
			Message:   fmt.Sprintf("Order #%s for %s from %s", orderSuffix(orderID), amount, customer),
			Type:      domain.EventOrderCreated,
			RelatedID: orderID,
			CreatedAt: time.Now(),
		},
		Effects: effects,
	}, nil
}

func (c *Classifier) classifyStatusUpdate(data json.RawMessage) (*domain.Classified, error) {
	var payload struct {
		OrderID      json.RawMessage `json:"orderId"`
		Status       string          `json:"status"`
		CustomerName string          `json:"customerName"`
		Message      string          `json:"message"`
	}
	c.decode(data, &payload)

	orderID := normalizeEntityID(payload.OrderID)
	status := domain.ParseOrderStatus(payload.Status)

	effects := c.invalidationsFor(domain.EventOrderStatusUpdated, orderID, status.TerminalForPayout())
	// Any status movement ends the new-order alert for that order.
	effects = append(effects, domain.AlertStopEffect(orderID))

	notification := domain.Notification{
		ID:        uuid.NewString(),
		Type:      domain.EventOrderStatusUpdated,
		RelatedID: orderID,
		CreatedAt: time.Now(),
	}

	if c.hasRole(domain.RoleOperator) && status == domain.StatusOutForDelivery {
		// Dispatch status reads as a delivery assignment on the
		// operator side.
		notification.Type = domain.EventDeliveryAssigned
		notification.Title = "Delivery Assigned"
		notification.Message = fmt.Sprintf("Order #%s is out for delivery", orderSuffix(orderID))
		effects = append(effects, c.invalidationsFor(domain.EventDeliveryAssigned, orderID, false)...)
	} else {
		notification.Title = "Order Status Updated"
		notification.Message = payload.Message
		if notification.Message == "" {
			notification.Message = fmt.Sprintf("Order #%s is now %s", orderSuffix(orderID), payload.Status)
		}
	}

	return &domain.Classified{Notification: notification, Effects: dedupeEffects(effects)}, nil
}

func (c *Classifier) classifyDeliveryAssigned(data json.RawMessage) (*domain.Classified, error) {
	if !c.hasRole(domain.RoleOperator) {
		return nil, errEventNotRelevant
	}

	var payload struct {
		OrderID         json.RawMessage `json:"orderId"`
		CustomerName    string          `json:"customerName"`
		DeliveryAddress string          `json:"deliveryAddress"`
	}
	c.decode(data, &payload)

	orderID := normalizeEntityID(payload.OrderID)
	message := fmt.Sprintf("Order #%s assigned for delivery", orderSuffix(orderID))
	if payload.DeliveryAddress != "" {
		message = fmt.Sprintf("Order #%s assigned for delivery to %s", orderSuffix(orderID), payload.DeliveryAddress)
	}

	return &domain.Classified{
		Notification: domain.Notification{
			ID:        uuid.NewString(),
			Title:     "Delivery Assigned",
			Message:   message,
			Type:      domain.EventDeliveryAssigned,
			RelatedID: orderID,
			CreatedAt: time.Now(),
		},
		Effects: c.invalidationsFor(domain.EventDeliveryAssigned, orderID, false),
	}, nil
}

// decode tolerates malformed payloads: one bad event must not break the
// stream, so fields left unset simply fall back to generic labels.
func (c *Classifier) decode(data json.RawMessage, target interface{}) {
	if len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, target); err != nil {
		c.log.Warn("Malformed event payload, using fallback fields", "error", err)
	}
}

func (c *Classifier) invalidationsFor(eventType domain.EventType, orderID string, payoutTerminal bool) []domain.SideEffect {
	byRole := invalidationTable[eventType]
	if byRole == nil {
		return nil
	}

	var effects []domain.SideEffect
	for _, role := range c.roles {
		for _, build := range byRole[role] {
			effects = append(effects, domain.InvalidateEffect(build(orderID)))
		}
		if payoutTerminal {
			for _, build := range payoutTable[role] {
				effects = append(effects, domain.InvalidateEffect(build(orderID)))
			}
		}
	}
	for _, build := range byRole[roleGlobal] {
		effects = append(effects, domain.InvalidateEffect(build(orderID)))
	}
	return dedupeEffects(effects)
}

func (c *Classifier) hasRole(role domain.Role) bool {
	for _, r := range c.roles {
		if r == role {
			return true
		}
	}
	return false
}

// ownStore reports whether a new-order payload belongs to this
// merchant. The stream is already store-scoped server-side, so a
// missing store id on either side means yes.
func (c *Classifier) ownStore(rawStoreID json.RawMessage) bool {
	storeID := normalizeEntityID(rawStoreID)
	if storeID == "" || c.storeID == "" {
		return true
	}
	return storeID == c.storeID
}

func dedupeEffects(effects []domain.SideEffect) []domain.SideEffect {
	seen := make(map[domain.SideEffect]struct{}, len(effects))
	deduped := effects[:0]
	for _, effect := range effects {
		if _, dup := seen[effect]; dup {
			continue
		}
		seen[effect] = struct{}{}
		deduped = append(deduped, effect)
	}
	return deduped
}

// normalizeEntityID resolves an id field to one canonical string. The
// wire may carry it as a bare string, a number, or a nested object with
// an "_id"/"id" field; all forms normalize identically.
func normalizeEntityID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var value interface{}
	if err := decoder.Decode(&value); err != nil {
		return ""
	}
	return idFromValue(value)
}

func idFromValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case map[string]interface{}:
		if id, ok := v["_id"]; ok {
			return idFromValue(id)
		}
		if id, ok := v["id"]; ok {
			return idFromValue(id)
		}
	}
	return ""
}

// orderSuffix shortens an order id for display.
func orderSuffix(orderID string) string {
	if len(orderID) <= 6 {
		return orderID
	}
	return orderID[len(orderID)-6:]
}
