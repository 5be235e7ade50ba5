package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
)

// AuditLog holds the schema definition for an administrative change.
type AuditLog struct {
	ent.Schema
}

// Annotations of the AuditLog.
func (AuditLog) Annotations() []schema.Annotation {
	return []schema.Annotation{entsql.Annotation{Table: "audit_logs"}}
}

// Fields of the AuditLog.
func (AuditLog) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			SchemaType(uuidType).
			Unique().
			Immutable(),

		field.String("user_id").
			SchemaType(uuidType),

		// action is e.g. "create", "update", "delete", "sync"
		field.String("action"),

		// resource_type is e.g. "model" or "endpoint"
		field.String("resource_type"),

		field.String("resource_id").
			Default(""),

		field.JSON("details", map[string]any{}).
			Optional(),

		field.Time("created_at").
			Immutable(),
	}
}
