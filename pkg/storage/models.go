package storage

import "time"

// Role is a profile's authorization role.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// MessageRole is the author of a message.
type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// HealthStatus is the last observed state of an endpoint.
type HealthStatus string

const (
	HealthUnknown   HealthStatus = "unknown"
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// Profile is the application-side record of an authenticated user.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// IsAdmin reports whether the profile carries the admin role.
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// Conversation is a user-owned chat thread.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	ModelID   *string   `json:"model_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationUpdate carries the mutable fields of a conversation. Nil
// fields are left unchanged.
type ConversationUpdate struct {
	Title   *string
	ModelID *string
}

// Message is one turn in a conversation.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	Tokens         *int        `json:"tokens"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Endpoint is a configured Ollama server.
type Endpoint struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	BaseURL         string       `json:"base_url"`
	IsLocal         bool         `json:"is_local"`
	APIKey          string       `json:"-"`
	IsEnabled       bool         `json:"is_enabled"`
	HealthStatus    HealthStatus `json:"health_status"`
	LastHealthCheck *time.Time   `json:"last_health_check"`
	CreatedAt       time.Time    `json:"created_at"`
}

// EndpointUpdate carries the mutable fields of an endpoint.
type EndpointUpdate struct {
	Name      *string
	BaseURL   *string
	IsLocal   *bool
	APIKey    *string
	IsEnabled *bool
}

// Model is an upstream model exposed to users.
type Model struct {
	ID         string         `json:"id"`
	EndpointID string         `json:"endpoint_id"`
	Name       string         `json:"name"`
	ModelID    string         `json:"model_id"`
	Parameters map[string]any `json:"parameters"`
	Size       int64          `json:"size"`
	Digest     string         `json:"digest"`
	ModifiedAt *time.Time     `json:"modified_at"`
	IsEnabled  bool           `json:"is_enabled"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ModelUpdate carries the mutable fields of a model.
type ModelUpdate struct {
	Name       *string
	ModelID    *string
	Parameters map[string]any
	IsEnabled  *bool
}

// ModelWithEndpoint joins a model with the endpoint serving it.
type ModelWithEndpoint struct {
	Model
	Endpoint Endpoint `json:"ollama_endpoints"`
}

// UsageLog records one completed generation.
type UsageLog struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ModelID        string    `json:"model_id"`
	EndpointID     string    `json:"endpoint_id"`
	TokensUsed     int       `json:"tokens_used"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// UsageQuery filters usage logs. An empty UserID selects every user.
type UsageQuery struct {
	UserID string
	Limit  int
}

// AuditLog records an administrative change.
type AuditLog struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
