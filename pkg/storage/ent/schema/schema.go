// Package schema holds the ent entity definitions for chatrelay's relational
// store. Table and column names match the Supabase tables the browser client
// reads, so a Postgres deployment can share that database.
//
// No client is generated from these. The migration descriptors in
// pkg/storage/ent/migrate are kept by hand and must change with them.
package schema

import "entgo.io/ent/dialect"

// uuidType stores string identifiers as native UUIDs on Postgres. SQLite
// keeps them as text.
var uuidType = map[string]string{dialect.Postgres: "uuid"}
