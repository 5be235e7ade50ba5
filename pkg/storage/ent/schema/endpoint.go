package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// OllamaEndpoint holds the schema definition for a configured Ollama server.
type OllamaEndpoint struct {
	ent.Schema
}

// Annotations of the OllamaEndpoint.
func (OllamaEndpoint) Annotations() []schema.Annotation {
	return []schema.Annotation{entsql.Annotation{Table: "ollama_endpoints"}}
}

// Fields of the OllamaEndpoint.
func (OllamaEndpoint) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			SchemaType(uuidType).
			Unique().
			Immutable(),

		field.String("name").
			NotEmpty(),

		field.String("base_url").
			NotEmpty(),

		field.Bool("is_local").
			Default(false),

		// api_key is sent as a bearer token to remote servers
		field.String("api_key").
			Optional().
			Nillable().
			Sensitive(),

		field.Bool("is_enabled").
			Default(true),

		// health_status is "unknown", "healthy" or "unhealthy"
		field.String("health_status").
			Default("unknown"),

		field.Time("last_health_check").
			Optional().
			Nillable(),

		field.Time("created_at").
			Immutable(),
	}
}

// Edges of the OllamaEndpoint.
func (OllamaEndpoint) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("models", Model.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}
