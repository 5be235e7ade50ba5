package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Conversation holds the schema definition for the Conversation entity.
type Conversation struct {
	ent.Schema
}

// Annotations of the Conversation.
func (Conversation) Annotations() []schema.Annotation {
	return []schema.Annotation{entsql.Annotation{Table: "conversations"}}
}

// Fields of the Conversation.
func (Conversation) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			SchemaType(uuidType).
			Unique().
			Immutable(),

		// user_id is the owning profile; every lookup is scoped to it
		field.String("user_id").
			SchemaType(uuidType),

		field.String("title").
			NotEmpty(),

		// model_id is the last model used, if any
		field.String("model_id").
			SchemaType(uuidType).
			Optional().
			Nillable(),

		field.Time("created_at").
			Immutable(),

		// updated_at is bumped after every generation
		field.Time("updated_at"),
	}
}

// Indexes of the Conversation.
func (Conversation) Indexes() []ent.Index {
	return []ent.Index{
		// Listing is per user, most recently updated first
		index.Fields("user_id", "updated_at"),
	}
}

// Edges of the Conversation.
func (Conversation) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("messages", Message.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}
