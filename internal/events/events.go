package events

import (
	"context"
	"sync"
	"time"

	"card-optimiser/internal/models"
)

// EventType represents the type of event.
type EventType string

const (
	// EventContextReceived is emitted when a transaction context is captured
	EventContextReceived EventType = "context.received"
	// EventRecommendationComputed is emitted after the engine runs for a user
	EventRecommendationComputed EventType = "recommendation.computed"
	// EventCardsUpdated is emitted when a user's held card set changes
	EventCardsUpdated EventType = "cards.updated"
	// EventCatalogRefreshed is emitted after a catalog reload
	EventCatalogRefreshed EventType = "catalog.refreshed"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// ContextReceivedData contains data for context received events.
type ContextReceivedData struct {
	UserID  string
	Context models.TransactionContext
}

// RecommendationComputedData contains data for recommendation events.
type RecommendationComputedData struct {
	UserID     string
	Context    models.TransactionContext
	Results    []models.Recommendation
	ComputedAt time.Time
}

// CardsUpdatedData contains data for held-card update events.
type CardsUpdatedData struct {
	UserID  string
	CardIDs []string
}

// CatalogRefreshedData contains data for catalog refresh events.
type CatalogRefreshedData struct {
	Cards  string
	Rules  string
	Offers string
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager manages event handlers and event publishing.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
}

// NewManager creates a new event manager.
func NewManager(enabled bool) *Manager {
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish publishes an event to all subscribed handlers. Handlers run
// asynchronously so publishing never blocks a request.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	if !m.enabled {
		return
	}

	m.mu.RLock()
	handlers := m.handlers[eventType]
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	for _, handler := range handlers {
		go func(h Handler) {
			_ = h(ctx, event)
		}(handler)
	}
}

// PublishContextReceived publishes a context received event.
func (m *Manager) PublishContextReceived(ctx context.Context, userID string, txnCtx models.TransactionContext) {
	m.Publish(ctx, EventContextReceived, ContextReceivedData{UserID: userID, Context: txnCtx})
}

// PublishRecommendationComputed publishes a recommendation computed event.
func (m *Manager) PublishRecommendationComputed(ctx context.Context, userID string, txnCtx models.TransactionContext, results []models.Recommendation) {
	m.Publish(ctx, EventRecommendationComputed, RecommendationComputedData{
		UserID:     userID,
		Context:    txnCtx,
		Results:    results,
		ComputedAt: time.Now(),
	})
}

// PublishCardsUpdated publishes a held-card update event.
func (m *Manager) PublishCardsUpdated(ctx context.Context, userID string, cardIDs []string) {
	m.Publish(ctx, EventCardsUpdated, CardsUpdatedData{UserID: userID, CardIDs: cardIDs})
}

// PublishCatalogRefreshed publishes a catalog refreshed event.
func (m *Manager) PublishCatalogRefreshed(ctx context.Context, cards, rules, offers string) {
	m.Publish(ctx, EventCatalogRefreshed, CatalogRefreshedData{
		Cards:  cards,
		Rules:  rules,
		Offers: offers,
	})
}

// Shutdown shuts down the event manager.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
}
