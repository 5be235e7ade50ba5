package entdriver

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/papercomputeco/chatrelay/pkg/storage"
)

var (
	endpointColumns = []string{"id", "name", "base_url", "is_local", "api_key", "is_enabled", "health_status", "last_health_check", "created_at"}
	modelColumns    = []string{"id", "endpoint_id", "name", "model_id", "parameters", "size", "digest", "modified_at", "is_enabled", "created_at"}
)

func endpointDest(e *storage.Endpoint, apiKey *stdsql.NullString, health *string, checked *stdsql.NullTime) []any {
	return []any{&e.ID, &e.Name, &e.BaseURL, &e.IsLocal, apiKey, &e.IsEnabled, health, checked, &e.CreatedAt}
}

func finishEndpoint(e *storage.Endpoint, apiKey stdsql.NullString, health string, checked stdsql.NullTime) {
	e.APIKey = apiKey.String
	e.HealthStatus = storage.HealthStatus(health)
	e.LastHealthCheck = timePtr(checked)
	e.CreatedAt = e.CreatedAt.UTC()
}

func modelDest(m *storage.Model, params *stdsql.NullString, modified *stdsql.NullTime) []any {
	return []any{&m.ID, &m.EndpointID, &m.Name, &m.ModelID, params, &m.Size, &m.Digest, modified, &m.IsEnabled, &m.CreatedAt}
}

func finishModel(m *storage.Model, params stdsql.NullString, modified stdsql.NullTime) error {
	p, err := decodeJSON(params)
	if err != nil {
		return err
	}
	if p == nil {
		p = map[string]any{}
	}
	m.Parameters = p
	m.ModifiedAt = timePtr(modified)
	m.CreatedAt = m.CreatedAt.UTC()
	return nil
}

func scanEndpoint(row scanner) (*storage.Endpoint, error) {
	var (
		e       storage.Endpoint
		apiKey  stdsql.NullString
		health  string
		checked stdsql.NullTime
	)
	if err := row.Scan(endpointDest(&e, &apiKey, &health, &checked)...); err != nil {
		return nil, err
	}
	finishEndpoint(&e, apiKey, health, checked)
	return &e, nil
}

func scanModel(row scanner) (*storage.Model, error) {
	var (
		m        storage.Model
		params   stdsql.NullString
		modified stdsql.NullTime
	)
	if err := row.Scan(modelDest(&m, &params, &modified)...); err != nil {
		return nil, err
	}
	if err := finishModel(&m, params, modified); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanJoined(row scanner) (*storage.ModelWithEndpoint, error) {
	var (
		out      storage.ModelWithEndpoint
		params   stdsql.NullString
		modified stdsql.NullTime
		apiKey   stdsql.NullString
		health   string
		checked  stdsql.NullTime
	)
	dest := append(modelDest(&out.Model, &params, &modified), endpointDest(&out.Endpoint, &apiKey, &health, &checked)...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if err := finishModel(&out.Model, params, modified); err != nil {
		return nil, err
	}
	finishEndpoint(&out.Endpoint, apiKey, health, checked)
	return &out, nil
}

// joined selects every model column followed by every column of the endpoint
// serving it. m and e are the aliased tables for filtering and ordering.
func (ed *EntDriver) joined() (sel *sql.Selector, m, e *sql.SelectTable) {
	b := ed.builder()
	m = b.Table("models").As("m")
	e = b.Table("ollama_endpoints").As("e")

	columns := make([]string, 0, len(modelColumns)+len(endpointColumns))
	for _, c := range modelColumns {
		columns = append(columns, m.C(c))
	}
	for _, c := range endpointColumns {
		columns = append(columns, e.C(c))
	}

	sel = b.Select(columns...).
		From(m).
		Join(e).
		On(m.C("endpoint_id"), e.C("id"))
	return sel, m, e
}

// Endpoints

func (ed *EntDriver) ListEndpoints(ctx context.Context, enabledOnly bool) ([]*storage.Endpoint, error) {
	sel := ed.selectFrom("ollama_endpoints", endpointColumns...).
		OrderBy("name", "id")
	if enabledOnly {
		sel.Where(sql.EQ("is_enabled", true))
	}

	out, err := queryAll(ctx, ed.drv, sel, scanEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to list endpoints: %w", err)
	}
	return out, nil
}

func (ed *EntDriver) GetEndpoint(ctx context.Context, id string) (*storage.Endpoint, error) {
	q := ed.selectFrom("ollama_endpoints", endpointColumns...).Where(sql.EQ("id", id))
	return queryOne(ctx, ed.drv, q, scanEndpoint, "endpoint", id)
}

func (ed *EntDriver) CreateEndpoint(ctx context.Context, endpoint *storage.Endpoint) (*storage.Endpoint, error) {
	e := *endpoint
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.HealthStatus == "" {
		e.HealthStatus = storage.HealthUnknown
	}
	e.CreatedAt = ed.now()

	var apiKey *string
	if e.APIKey != "" {
		apiKey = &e.APIKey
	}

	insert := ed.builder().Insert("ollama_endpoints").
		Columns(endpointColumns...).
		Values(e.ID, e.Name, e.BaseURL, e.IsLocal, nullString(apiKey), e.IsEnabled, string(e.HealthStatus), nullTime(e.LastHealthCheck), e.CreatedAt)
	if _, err := exec(ctx, ed.drv, insert); err != nil {
		return nil, fmt.Errorf("failed to create endpoint: %w", err)
	}
	return &e, nil
}

func (ed *EntDriver) UpdateEndpoint(ctx context.Context, id string, upd storage.EndpointUpdate) (*storage.Endpoint, error) {
	update := ed.builder().Update("ollama_endpoints")
	changed := false
	set := func(column string, v any) {
		update.Set(column, v)
		changed = true
	}

	if upd.Name != nil {
		set("name", *upd.Name)
	}
	if upd.BaseURL != nil {
		set("base_url", *upd.BaseURL)
	}
	if upd.IsLocal != nil {
		set("is_local", *upd.IsLocal)
	}
	if upd.APIKey != nil {
		set("api_key", nullString(upd.APIKey))
	}
	if upd.IsEnabled != nil {
		set("is_enabled", *upd.IsEnabled)
	}
	if !changed {
		return ed.GetEndpoint(ctx, id)
	}

	n, err := exec(ctx, ed.drv, update.Where(sql.EQ("id", id)))
	if err != nil {
		return nil, fmt.Errorf("failed to update endpoint: %w", err)
	}
	if err := requireAffected(n, "endpoint", id); err != nil {
		return nil, err
	}
	return ed.GetEndpoint(ctx, id)
}

func (ed *EntDriver) DeleteEndpoint(ctx context.Context, id string) error {
	return ed.inTx(ctx, func(tx dialect.Tx) error {
		b := ed.builder()
		if _, err := exec(ctx, tx, b.Delete("models").Where(sql.EQ("endpoint_id", id))); err != nil {
			return fmt.Errorf("failed to delete endpoint models: %w", err)
		}
		n, err := exec(ctx, tx, b.Delete("ollama_endpoints").Where(sql.EQ("id", id)))
		if err != nil {
			return fmt.Errorf("failed to delete endpoint: %w", err)
		}
		return requireAffected(n, "endpoint", id)
	})
}

func (ed *EntDriver) UpdateEndpointHealth(ctx context.Context, id string, status storage.HealthStatus, checkedAt time.Time) error {
	update := ed.builder().Update("ollama_endpoints").
		Set("health_status", string(status)).
		Set("last_health_check", checkedAt.UTC()).
		Where(sql.EQ("id", id))

	n, err := exec(ctx, ed.drv, update)
	if err != nil {
		return fmt.Errorf("failed to update endpoint health: %w", err)
	}
	return requireAffected(n, "endpoint", id)
}

// Models

func (ed *EntDriver) GetModelWithEndpoint(ctx context.Context, modelID string) (*storage.ModelWithEndpoint, error) {
	sel, m, _ := ed.joined()
	sel.Where(sql.EQ(m.C("id"), modelID))
	return queryOne(ctx, ed.drv, sel, scanJoined, "model", modelID)
}

func (ed *EntDriver) ListModels(ctx context.Context, enabledOnly bool) ([]*storage.ModelWithEndpoint, error) {
	sel, m, _ := ed.joined()
	sel.OrderBy(m.C("name"), m.C("id"))
	if enabledOnly {
		sel.Where(sql.EQ(m.C("is_enabled"), true))
	}

	out, err := queryAll(ctx, ed.drv, sel, scanJoined)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return out, nil
}

func (ed *EntDriver) getModel(ctx context.Context, conn dialect.ExecQuerier, p *sql.Predicate, id string) (*storage.Model, error) {
	q := ed.selectFrom("models", modelColumns...).Where(p)
	return queryOne(ctx, conn, q, scanModel, "model", id)
}

func (ed *EntDriver) CreateModel(ctx context.Context, model *storage.Model) (*storage.Model, error) {
	m := *model
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Parameters == nil {
		m.Parameters = map[string]any{}
	}
	m.CreatedAt = ed.now()

	params, err := encodeJSON(m.Parameters)
	if err != nil {
		return nil, err
	}

	err = ed.inTx(ctx, func(tx dialect.Tx) error {
		ok, err := ed.exists(ctx, tx, "ollama_endpoints", m.EndpointID)
		if err != nil {
			return fmt.Errorf("failed to look up endpoint: %w", err)
		}
		if !ok {
			return storage.NotFoundError{Resource: "endpoint", ID: m.EndpointID}
		}

		insert := ed.builder().Insert("models").
			Columns(modelColumns...).
			Values(m.ID, m.EndpointID, m.Name, m.ModelID, params, m.Size, m.Digest, nullTime(m.ModifiedAt), m.IsEnabled, m.CreatedAt)
		if _, err := exec(ctx, tx, insert); err != nil {
			return fmt.Errorf("failed to create model: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (ed *EntDriver) UpdateModel(ctx context.Context, id string, upd storage.ModelUpdate) (*storage.Model, error) {
	update := ed.builder().Update("models")
	changed := false
	set := func(column string, v any) {
		update.Set(column, v)
		changed = true
	}

	if upd.Name != nil {
		set("name", *upd.Name)
	}
	if upd.ModelID != nil {
		set("model_id", *upd.ModelID)
	}
	if upd.Parameters != nil {
		params, err := encodeJSON(upd.Parameters)
		if err != nil {
			return nil, err
		}
		set("parameters", params)
	}
	if upd.IsEnabled != nil {
		set("is_enabled", *upd.IsEnabled)
	}
	if !changed {
		return ed.getModel(ctx, ed.drv, sql.EQ("id", id), id)
	}

	n, err := exec(ctx, ed.drv, update.Where(sql.EQ("id", id)))
	if err != nil {
		return nil, fmt.Errorf("failed to update model: %w", err)
	}
	if err := requireAffected(n, "model", id); err != nil {
		return nil, err
	}
	return ed.getModel(ctx, ed.drv, sql.EQ("id", id), id)
}

func (ed *EntDriver) DeleteModel(ctx context.Context, id string) error {
	n, err := exec(ctx, ed.drv, ed.builder().Delete("models").Where(sql.EQ("id", id)))
	if err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}
	return requireAffected(n, "model", id)
}

func (ed *EntDriver) UpsertModels(ctx context.Context, endpointID string, models []*storage.Model) ([]*storage.Model, error) {
	out := make([]*storage.Model, 0, len(models))

	err := ed.inTx(ctx, func(tx dialect.Tx) error {
		ok, err := ed.exists(ctx, tx, "ollama_endpoints", endpointID)
		if err != nil {
			return fmt.Errorf("failed to look up endpoint: %w", err)
		}
		if !ok {
			return storage.NotFoundError{Resource: "endpoint", ID: endpointID}
		}

		for _, in := range models {
			params, err := encodeJSON(in.Parameters)
			if err != nil {
				return err
			}

			insert := ed.builder().Insert("models").
				Columns(modelColumns...).
				Values(uuid.NewString(), endpointID, in.Name, in.ModelID, params, in.Size, in.Digest, nullTime(in.ModifiedAt), in.IsEnabled, ed.now()).
				OnConflict(
					sql.ConflictColumns("endpoint_id", "model_id"),
					sql.ResolveWith(func(u *sql.UpdateSet) {
						u.SetExcluded("name")
						u.SetExcluded("size")
						u.SetExcluded("digest")
						u.SetExcluded("modified_at")
						u.SetExcluded("is_enabled")
					}),
				)
			if _, err := exec(ctx, tx, insert); err != nil {
				return fmt.Errorf("failed to upsert model %s: %w", in.ModelID, err)
			}

			key := sql.And(sql.EQ("endpoint_id", endpointID), sql.EQ("model_id", in.ModelID))
			m, err := ed.getModel(ctx, tx, key, in.ModelID)
			if err != nil {
				return fmt.Errorf("failed to read upserted model %s: %w", in.ModelID, err)
			}
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
