// Package storage defines chatrelay's persistence interfaces and entities.
// Drivers live in the subpackages.
package storage

import (
	"context"
	"time"
)

// Sink is the set of operations the relay consumes while serving a
// generation: resolve the model, record both sides of the exchange and the
// usage, and bump the conversation.
type Sink interface {
	// GetModelWithEndpoint resolves a model and the endpoint serving it.
	GetModelWithEndpoint(ctx context.Context, modelID string) (*ModelWithEndpoint, error)

	// InsertMessage appends a message to a conversation.
	InsertMessage(ctx context.Context, conversationID string, role MessageRole, content string, tokens *int) (*Message, error)

	// InsertUsageLog records a completed generation.
	InsertUsageLog(ctx context.Context, log *UsageLog) error

	// TouchConversation sets the conversation's updated_at to now.
	TouchConversation(ctx context.Context, conversationID string) error
}

// ProfileStore reads and writes user profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*Profile, error)
	UpsertProfile(ctx context.Context, profile *Profile) (*Profile, error)
}

// ConversationStore manages conversations and their messages. Every
// conversation lookup is scoped to the owning user.
type ConversationStore interface {
	CreateConversation(ctx context.Context, userID, title string, modelID *string) (*Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]*Conversation, error)
	GetConversation(ctx context.Context, userID, id string) (*Conversation, error)
	UpdateConversation(ctx context.Context, userID, id string, update ConversationUpdate) (*Conversation, error)
	DeleteConversation(ctx context.Context, userID, id string) error

	// ListMessages returns a conversation's messages oldest first.
	ListMessages(ctx context.Context, conversationID string) ([]*Message, error)
}

// ModelStore manages the model catalogue.
type ModelStore interface {
	// ListModels returns models ordered by name, each joined with its endpoint.
	ListModels(ctx context.Context, enabledOnly bool) ([]*ModelWithEndpoint, error)
	CreateModel(ctx context.Context, model *Model) (*Model, error)
	UpdateModel(ctx context.Context, id string, update ModelUpdate) (*Model, error)
	DeleteModel(ctx context.Context, id string) error

	// UpsertModels inserts or refreshes models keyed on (endpoint, model_id)
	// and returns the stored rows.
	UpsertModels(ctx context.Context, endpointID string, models []*Model) ([]*Model, error)
}

// EndpointStore manages configured Ollama servers.
type EndpointStore interface {
	ListEndpoints(ctx context.Context, enabledOnly bool) ([]*Endpoint, error)
	GetEndpoint(ctx context.Context, id string) (*Endpoint, error)
	CreateEndpoint(ctx context.Context, endpoint *Endpoint) (*Endpoint, error)
	UpdateEndpoint(ctx context.Context, id string, update EndpointUpdate) (*Endpoint, error)

	// DeleteEndpoint removes the endpoint and every model it serves.
	DeleteEndpoint(ctx context.Context, id string) error
	UpdateEndpointHealth(ctx context.Context, id string, status HealthStatus, checkedAt time.Time) error
}

// UsageStore reads usage logs, newest first.
type UsageStore interface {
	ListUsageLogs(ctx context.Context, query UsageQuery) ([]*UsageLog, error)
}

// AuditStore records and lists administrative changes, newest first.
type AuditStore interface {
	InsertAuditLog(ctx context.Context, log *AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]*AuditLog, error)
}

// Driver is a complete storage backend.
type Driver interface {
	Sink
	ProfileStore
	ConversationStore
	ModelStore
	EndpointStore
	UsageStore
	AuditStore

	// Close closes the store and releases any resources.
	Close() error
}
