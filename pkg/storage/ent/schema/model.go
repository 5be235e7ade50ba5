package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Model holds the schema definition for an upstream model exposed to users.
type Model struct {
	ent.Schema
}

// Annotations of the Model.
func (Model) Annotations() []schema.Annotation {
	return []schema.Annotation{entsql.Annotation{Table: "models"}}
}

// Fields of the Model.
func (Model) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			SchemaType(uuidType).
			Unique().
			Immutable(),

		field.String("endpoint_id").
			SchemaType(uuidType),

		// name is the display name
		field.String("name"),

		// model_id is the upstream tag, e.g. "llama3:8b"
		field.String("model_id"),

		field.JSON("parameters", map[string]any{}),

		field.Int64("size").
			Default(0),

		field.String("digest").
			Default(""),

		field.Time("modified_at").
			Optional().
			Nillable(),

		field.Bool("is_enabled").
			Default(true),

		field.Time("created_at").
			Immutable(),
	}
}

// Indexes of the Model.
func (Model) Indexes() []ent.Index {
	return []ent.Index{
		// Model sync upserts on this pair
		index.Fields("endpoint_id", "model_id").
			Unique(),
	}
}

// Edges of the Model.
func (Model) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("endpoint", OllamaEndpoint.Type).
			Ref("models").
			Field("endpoint_id").
			Unique().
			Required(),
	}
}
