// Package inmemory implements storage.Driver with mutex-guarded maps. It is
// the default backend for local runs and the backend used in tests.
package inmemory

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/chatrelay/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu guards every map and slice below.
	mu sync.RWMutex

	profiles      map[string]*storage.Profile
	conversations map[string]*storage.Conversation
	endpoints     map[string]*storage.Endpoint
	models        map[string]*storage.Model

	// messages, usage and audit are kept in insertion order.
	messages []*storage.Message
	usage    []*storage.UsageLog
	audit    []*storage.AuditLog

	now func() time.Time
}

// Option configures a Driver.
type Option func(*Driver)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

// NewDriver creates a new in-memory store.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{
		profiles:      make(map[string]*storage.Profile),
		conversations: make(map[string]*storage.Conversation),
		endpoints:     make(map[string]*storage.Endpoint),
		models:        make(map[string]*storage.Model),
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Profiles

func (d *Driver) GetProfile(_ context.Context, id string) (*storage.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.profiles[id]
	if !ok {
		return nil, storage.NotFoundError{Resource: "profile", ID: id}
	}
	out := *p
	return &out, nil
}

func (d *Driver) UpsertProfile(_ context.Context, profile *storage.Profile) (*storage.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := *profile
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Role == "" {
		p.Role = storage.RoleUser
	}
	if existing, ok := d.profiles[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = d.now()
	}
	d.profiles[p.ID] = &p

	out := p
	return &out, nil
}

// Conversations

func (d *Driver) CreateConversation(_ context.Context, userID, title string, modelID *string) (*storage.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	c := &storage.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		ModelID:   cloneString(modelID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	d.conversations[c.ID] = c

	out := *c
	return &out, nil
}

func (d *Driver) ListConversations(_ context.Context, userID string) ([]*storage.Conversation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := []*storage.Conversation{}
	for _, c := range d.conversations {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	slices.SortStableFunc(out, func(a, b *storage.Conversation) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (d *Driver) GetConversation(_ context.Context, userID, id string) (*storage.Conversation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.conversations[id]
	if !ok || c.UserID != userID {
		return nil, storage.NotFoundError{Resource: "conversation", ID: id}
	}
	out := *c
	return &out, nil
}

func (d *Driver) UpdateConversation(_ context.Context, userID, id string, update storage.ConversationUpdate) (*storage.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.conversations[id]
	if !ok || c.UserID != userID {
		return nil, storage.NotFoundError{Resource: "conversation", ID: id}
	}
	if update.Title != nil {
		c.Title = *update.Title
	}
	if update.ModelID != nil {
		c.ModelID = cloneString(update.ModelID)
	}
	c.UpdatedAt = d.now()

	out := *c
	return &out, nil
}

func (d *Driver) DeleteConversation(_ context.Context, userID, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.conversations[id]
	if !ok || c.UserID != userID {
		return storage.NotFoundError{Resource: "conversation", ID: id}
	}
	delete(d.conversations, id)
	d.messages = slices.DeleteFunc(d.messages, func(m *storage.Message) bool {
		return m.ConversationID == id
	})
	return nil
}

func (d *Driver) TouchConversation(_ context.Context, conversationID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.conversations[conversationID]
	if !ok {
		return storage.NotFoundError{Resource: "conversation", ID: conversationID}
	}
	c.UpdatedAt = d.now()
	return nil
}

// Messages

func (d *Driver) InsertMessage(_ context.Context, conversationID string, role storage.MessageRole, content string, tokens *int) (*storage.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.conversations[conversationID]; !ok {
		return nil, storage.NotFoundError{Resource: "conversation", ID: conversationID}
	}

	m := &storage.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Tokens:         cloneInt(tokens),
		CreatedAt:      d.now(),
	}
	d.messages = append(d.messages, m)

	out := *m
	return &out, nil
}

func (d *Driver) ListMessages(_ context.Context, conversationID string) ([]*storage.Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := []*storage.Message{}
	for _, m := range d.messages {
		if m.ConversationID == conversationID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Endpoints

func (d *Driver) ListEndpoints(_ context.Context, enabledOnly bool) ([]*storage.Endpoint, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := []*storage.Endpoint{}
	for _, e := range d.endpoints {
		if enabledOnly && !e.IsEnabled {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *storage.Endpoint) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (d *Driver) GetEndpoint(_ context.Context, id string) (*storage.Endpoint, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.endpoints[id]
	if !ok {
		return nil, storage.NotFoundError{Resource: "endpoint", ID: id}
	}
	out := *e
	return &out, nil
}

func (d *Driver) CreateEndpoint(_ context.Context, endpoint *storage.Endpoint) (*storage.Endpoint, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e := *endpoint
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.HealthStatus == "" {
		e.HealthStatus = storage.HealthUnknown
	}
	e.CreatedAt = d.now()
	d.endpoints[e.ID] = &e

	out := e
	return &out, nil
}

func (d *Driver) UpdateEndpoint(_ context.Context, id string, update storage.EndpointUpdate) (*storage.Endpoint, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.endpoints[id]
	if !ok {
		return nil, storage.NotFoundError{Resource: "endpoint", ID: id}
	}
	if update.Name != nil {
		e.Name = *update.Name
	}
	if update.BaseURL != nil {
		e.BaseURL = *update.BaseURL
	}
	if update.IsLocal != nil {
		e.IsLocal = *update.IsLocal
	}
	if update.APIKey != nil {
		e.APIKey = *update.APIKey
	}
	if update.IsEnabled != nil {
		e.IsEnabled = *update.IsEnabled
	}

	out := *e
	return &out, nil
}

func (d *Driver) DeleteEndpoint(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.endpoints[id]; !ok {
		return storage.NotFoundError{Resource: "endpoint", ID: id}
	}
	delete(d.endpoints, id)
	maps.DeleteFunc(d.models, func(_ string, m *storage.Model) bool {
		return m.EndpointID == id
	})
	return nil
}

func (d *Driver) UpdateEndpointHealth(_ context.Context, id string, status storage.HealthStatus, checkedAt time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.endpoints[id]
	if !ok {
		return storage.NotFoundError{Resource: "endpoint", ID: id}
	}
	e.HealthStatus = status
	t := checkedAt
	e.LastHealthCheck = &t
	return nil
}

// Models

func (d *Driver) GetModelWithEndpoint(_ context.Context, modelID string) (*storage.ModelWithEndpoint, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	m, ok := d.models[modelID]
	if !ok {
		return nil, storage.NotFoundError{Resource: "model", ID: modelID}
	}
	return d.joinLocked(m)
}

func (d *Driver) ListModels(_ context.Context, enabledOnly bool) ([]*storage.ModelWithEndpoint, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := []*storage.ModelWithEndpoint{}
	for _, m := range d.models {
		if enabledOnly && !m.IsEnabled {
			continue
		}
		joined, err := d.joinLocked(m)
		if err != nil {
			continue
		}
		out = append(out, joined)
	}
	slices.SortFunc(out, func(a, b *storage.ModelWithEndpoint) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (d *Driver) CreateModel(_ context.Context, model *storage.Model) (*storage.Model, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.endpoints[model.EndpointID]; !ok {
		return nil, storage.NotFoundError{Resource: "endpoint", ID: model.EndpointID}
	}

	m := cloneModel(model)
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Parameters == nil {
		m.Parameters = map[string]any{}
	}
	m.CreatedAt = d.now()
	d.models[m.ID] = m

	return cloneModel(m), nil
}

func (d *Driver) UpdateModel(_ context.Context, id string, update storage.ModelUpdate) (*storage.Model, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.models[id]
	if !ok {
		return nil, storage.NotFoundError{Resource: "model", ID: id}
	}
	if update.Name != nil {
		m.Name = *update.Name
	}
	if update.ModelID != nil {
		m.ModelID = *update.ModelID
	}
	if update.Parameters != nil {
		m.Parameters = maps.Clone(update.Parameters)
	}
	if update.IsEnabled != nil {
		m.IsEnabled = *update.IsEnabled
	}

	return cloneModel(m), nil
}

func (d *Driver) DeleteModel(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.models[id]; !ok {
		return storage.NotFoundError{Resource: "model", ID: id}
	}
	delete(d.models, id)
	return nil
}

func (d *Driver) UpsertModels(_ context.Context, endpointID string, models []*storage.Model) ([]*storage.Model, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.endpoints[endpointID]; !ok {
		return nil, storage.NotFoundError{Resource: "endpoint", ID: endpointID}
	}

	out := make([]*storage.Model, 0, len(models))
	for _, in := range models {
		var existing *storage.Model
		for _, m := range d.models {
			if m.EndpointID == endpointID && m.ModelID == in.ModelID {
				existing = m
				break
			}
		}

		if existing == nil {
			m := cloneModel(in)
			m.ID = uuid.NewString()
			m.EndpointID = endpointID
			if m.Parameters == nil {
				m.Parameters = map[string]any{}
			}
			m.CreatedAt = d.now()
			d.models[m.ID] = m
			out = append(out, cloneModel(m))
			continue
		}

		existing.Name = in.Name
		existing.Size = in.Size
		existing.Digest = in.Digest
		existing.ModifiedAt = cloneTime(in.ModifiedAt)
		existing.IsEnabled = in.IsEnabled
		out = append(out, cloneModel(existing))
	}
	return out, nil
}

// Usage and audit

func (d *Driver) InsertUsageLog(_ context.Context, log *storage.UsageLog) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	l := *log
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.CreatedAt = d.now()
	d.usage = append(d.usage, &l)
	return nil
}

func (d *Driver) ListUsageLogs(_ context.Context, query storage.UsageQuery) ([]*storage.UsageLog, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := []*storage.UsageLog{}
	for i := len(d.usage) - 1; i >= 0; i-- {
		l := d.usage[i]
		if query.UserID != "" && l.UserID != query.UserID {
			continue
		}
		cp := *l
		out = append(out, &cp)
		if query.Limit > 0 && len(out) == query.Limit {
			break
		}
	}
	return out, nil
}

func (d *Driver) InsertAuditLog(_ context.Context, log *storage.AuditLog) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	l := *log
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.Details = maps.Clone(log.Details)
	l.CreatedAt = d.now()
	d.audit = append(d.audit, &l)
	return nil
}

func (d *Driver) ListAuditLogs(_ context.Context, limit int) ([]*storage.AuditLog, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := []*storage.AuditLog{}
	for i := len(d.audit) - 1; i >= 0; i-- {
		cp := *d.audit[i]
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (d *Driver) Close() error {
	return nil
}

func (d *Driver) joinLocked(m *storage.Model) (*storage.ModelWithEndpoint, error) {
	e, ok := d.endpoints[m.EndpointID]
	if !ok {
		return nil, storage.NotFoundError{Resource: "endpoint", ID: m.EndpointID}
	}
	return &storage.ModelWithEndpoint{Model: *cloneModel(m), Endpoint: *e}, nil
}

func cloneModel(m *storage.Model) *storage.Model {
	out := *m
	out.Parameters = maps.Clone(m.Parameters)
	out.ModifiedAt = cloneTime(m.ModifiedAt)
	return &out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

var _ storage.Driver = (*Driver)(nil)
