// Tables here are kept by hand. Edit them together with the matching entity
// in pkg/storage/ent/schema; migrate_test fails when fields or indexes drift.

package migrate

import (
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

var uuidType = map[string]string{"postgres": "uuid"}

var (
	// ProfilesColumns holds the columns for the "profiles" table.
	ProfilesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true, SchemaType: uuidType},
		{Name: "email", Type: field.TypeString, Default: ""},
		{Name: "full_name", Type: field.TypeString, Default: ""},
		{Name: "role", Type: field.TypeString, Default: "user"},
		{Name: "is_active", Type: field.TypeBool, Default: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	// ProfilesTable holds the schema information for the "profiles" table.
	ProfilesTable = &schema.Table{
		Name:       "profiles",
		Columns:    ProfilesColumns,
		PrimaryKey: []*schema.Column{ProfilesColumns[0]},
	}

	// ConversationsColumns holds the columns for the "conversations" table.
	ConversationsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true, SchemaType: uuidType},
		{Name: "user_id", Type: field.TypeString, SchemaType: uuidType},
		{Name: "title", Type: field.TypeString},
		{Name: "model_id", Type: field.TypeString, Nullable: true, SchemaType: uuidType},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// ConversationsTable holds the schema information for the "conversations" table.
	ConversationsTable = &schema.Table{
		Name:       "conversations",
		Columns:    ConversationsColumns,
		PrimaryKey: []*schema.Column{ConversationsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "conversation_user_id_updated_at",
				Unique:  false,
				Columns: []*schema.Column{ConversationsColumns[1], ConversationsColumns[5]},
			},
		},
	}

	// MessagesColumns holds the columns for the "messages" table.
	MessagesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true, SchemaType: uuidType},
		{Name: "conversation_id", Type: field.TypeString, SchemaType: uuidType},
		{Name: "role", Type: field.TypeString},
		{Name: "content", Type: field.TypeString, Size: 2147483647},
		{Name: "tokens", Type: field.TypeInt, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	// MessagesTable holds the schema information for the "messages" table.
	MessagesTable = &schema.Table{
		Name:       "messages",
		Columns:    MessagesColumns,
		PrimaryKey: []*schema.Column{MessagesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "messages_conversations_messages",
				Columns:    []*schema.Column{MessagesColumns[1]},
				RefColumns: []*schema.Column{ConversationsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "message_conversation_id_created_at",
				Unique:  false,
				Columns: []*schema.Column{MessagesColumns[1], MessagesColumns[5]},
			},
		},
	}

	// OllamaEndpointsColumns holds the columns for the "ollama_endpoints" table.
	OllamaEndpointsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true, SchemaType: uuidType},
		{Name: "name", Type: field.TypeString},
		{Name: "base_url", Type: field.TypeString},
		{Name: "is_local", Type: field.TypeBool, Default: false},
		{Name: "api_key", Type: field.TypeString, Nullable: true},
		{Name: "is_enabled", Type: field.TypeBool, Default: true},
		{Name: "health_status", Type: field.TypeString, Default: "unknown"},
		{Name: "last_health_check", Type: field.TypeTime, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	// OllamaEndpointsTable holds the schema information for the "ollama_endpoints" table.
	OllamaEndpointsTable = &schema.Table{
		Name:       "ollama_endpoints",
		Columns:    OllamaEndpointsColumns,
		PrimaryKey: []*schema.Column{OllamaEndpointsColumns[0]},
	}

	// ModelsColumns holds the columns for the "models" table.
	ModelsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true, SchemaType: uuidType},
		{Name: "endpoint_id", Type: field.TypeString, SchemaType: uuidType},
		{Name: "name", Type: field.TypeString},
		{Name: "model_id", Type: field.TypeString},
		{Name: "parameters", Type: field.TypeJSON},
		{Name: "size", Type: field.TypeInt64, Default: 0},
		{Name: "digest", Type: field.TypeString, Default: ""},
		{Name: "modified_at", Type: field.TypeTime, Nullable: true},
		{Name: "is_enabled", Type: field.TypeBool, Default: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	// ModelsTable holds the schema information for the "models" table.
	ModelsTable = &schema.Table{
		Name:       "models",
		Columns:    ModelsColumns,
		PrimaryKey: []*schema.Column{ModelsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "models_ollama_endpoints_models",
				Columns:    []*schema.Column{ModelsColumns[1]},
				RefColumns: []*schema.Column{OllamaEndpointsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "model_endpoint_id_model_id",
				Unique:  true,
				Columns: []*schema.Column{ModelsColumns[1], ModelsColumns[3]},
			},
		},
	}

	// UsageLogsColumns holds the columns for the "usage_logs" table.
	UsageLogsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true, SchemaType: uuidType},
		{Name: "user_id", Type: field.TypeString, SchemaType: uuidType},
		{Name: "model_id", Type: field.TypeString, SchemaType: uuidType},
		{Name: "endpoint_id", Type: field.TypeString, SchemaType: uuidType},
		{Name: "tokens_used", Type: field.TypeInt, Default: 0},
		{Name: "response_time_ms", Type: field.TypeInt64, Default: 0},
		{Name: "created_at", Type: field.TypeTime},
	}
	// UsageLogsTable holds the schema information for the "usage_logs" table.
	UsageLogsTable = &schema.Table{
		Name:       "usage_logs",
		Columns:    UsageLogsColumns,
		PrimaryKey: []*schema.Column{UsageLogsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "usagelog_user_id_created_at",
				Unique:  false,
				Columns: []*schema.Column{UsageLogsColumns[1], UsageLogsColumns[6]},
			},
		},
	}

	// AuditLogsColumns holds the columns for the "audit_logs" table.
	AuditLogsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true, SchemaType: uuidType},
		{Name: "user_id", Type: field.TypeString, SchemaType: uuidType},
		{Name: "action", Type: field.TypeString},
		{Name: "resource_type", Type: field.TypeString},
		{Name: "resource_id", Type: field.TypeString, Default: ""},
		{Name: "details", Type: field.TypeJSON, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	// AuditLogsTable holds the schema information for the "audit_logs" table.
	AuditLogsTable = &schema.Table{
		Name:       "audit_logs",
		Columns:    AuditLogsColumns,
		PrimaryKey: []*schema.Column{AuditLogsColumns[0]},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		ProfilesTable,
		ConversationsTable,
		MessagesTable,
		OllamaEndpointsTable,
		ModelsTable,
		UsageLogsTable,
		AuditLogsTable,
	}
)

func init() {
	MessagesTable.ForeignKeys[0].RefTable = ConversationsTable
	ModelsTable.ForeignKeys[0].RefTable = OllamaEndpointsTable

	for _, t := range Tables {
		t.Annotation = &entsql.Annotation{Table: t.Name}
	}
}
