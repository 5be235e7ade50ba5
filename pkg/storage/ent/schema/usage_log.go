package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// UsageLog holds the schema definition for one completed generation.
type UsageLog struct {
	ent.Schema
}

// Annotations of the UsageLog.
func (UsageLog) Annotations() []schema.Annotation {
	return []schema.Annotation{entsql.Annotation{Table: "usage_logs"}}
}

// Fields of the UsageLog.
func (UsageLog) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			SchemaType(uuidType).
			Unique().
			Immutable(),

		field.String("user_id").
			SchemaType(uuidType),

		field.String("model_id").
			SchemaType(uuidType),

		field.String("endpoint_id").
			SchemaType(uuidType),

		field.Int("tokens_used").
			Default(0),

		field.Int64("response_time_ms").
			Default(0),

		field.Time("created_at").
			Immutable(),
	}
}

// Indexes of the UsageLog.
func (UsageLog) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "created_at"),
	}
}
