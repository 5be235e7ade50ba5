package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
)

// Profile holds the schema definition for the Profile entity: the
// application-side record of an authenticated user.
type Profile struct {
	ent.Schema
}

// Annotations of the Profile.
func (Profile) Annotations() []schema.Annotation {
	return []schema.Annotation{entsql.Annotation{Table: "profiles"}}
}

// Fields of the Profile.
func (Profile) Fields() []ent.Field {
	return []ent.Field{
		// id is the auth provider's subject
		field.String("id").
			SchemaType(uuidType).
			Unique().
			Immutable(),

		field.String("email").
			Default(""),

		field.String("full_name").
			Default(""),

		// role is "user" or "admin"
		field.String("role").
			Default("user"),

		field.Bool("is_active").
			Default(true),

		field.Time("created_at").
			Immutable(),
	}
}
