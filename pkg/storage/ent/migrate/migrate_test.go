package migrate_test

import (
	"context"
	"database/sql"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	sqldialect "entgo.io/ent/dialect/sql"
	sqlschema "entgo.io/ent/dialect/sql/schema"
	entschema "entgo.io/ent/schema"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/storage/ent/migrate"
	"github.com/papercomputeco/chatrelay/pkg/storage/ent/schema"
)

type entity interface {
	Fields() []ent.Field
	Indexes() []ent.Index
	Annotations() []entschema.Annotation
}

func tableName(e entity) string {
	for _, a := range e.Annotations() {
		if ann, ok := a.(entsql.Annotation); ok {
			return ann.Table
		}
	}
	return ""
}

func findTable(name string) *sqlschema.Table {
	for _, t := range migrate.Tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

func columnNames(cols []*sqlschema.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

var _ = Describe("table descriptors", func() {
	DescribeTable("match the entity schema",
		func(e entity) {
			table := findTable(tableName(e))
			Expect(table).NotTo(BeNil())

			fields := e.Fields()
			Expect(table.Columns).To(HaveLen(len(fields)))
			for i, f := range fields {
				desc := f.Descriptor()
				col := table.Columns[i]
				Expect(col.Name).To(Equal(desc.Name))
				Expect(col.Type).To(Equal(desc.Info.Type), "column %s", col.Name)
				Expect(col.Nullable).To(Equal(desc.Optional), "column %s", col.Name)
				Expect(col.SchemaType).To(Equal(desc.SchemaType), "column %s", col.Name)
				if desc.Size > 0 {
					Expect(col.Size).To(BeEquivalentTo(desc.Size), "column %s", col.Name)
				}
			}

			Expect(table.Indexes).To(HaveLen(len(e.Indexes())))
			for i, idx := range e.Indexes() {
				desc := idx.Descriptor()
				Expect(columnNames(table.Indexes[i].Columns)).To(Equal(desc.Fields))
				Expect(table.Indexes[i].Unique).To(Equal(desc.Unique))
			}
		},
		Entry("profiles", schema.Profile{}),
		Entry("conversations", schema.Conversation{}),
		Entry("messages", schema.Message{}),
		Entry("ollama_endpoints", schema.OllamaEndpoint{}),
		Entry("models", schema.Model{}),
		Entry("usage_logs", schema.UsageLog{}),
		Entry("audit_logs", schema.AuditLog{}),
	)

	It("cascades deletes along the owning edges", func() {
		Expect(migrate.MessagesTable.ForeignKeys).To(HaveLen(1))
		Expect(migrate.MessagesTable.ForeignKeys[0].RefTable).To(Equal(migrate.ConversationsTable))
		Expect(migrate.MessagesTable.ForeignKeys[0].OnDelete).To(Equal(sqlschema.Cascade))

		Expect(migrate.ModelsTable.ForeignKeys).To(HaveLen(1))
		Expect(migrate.ModelsTable.ForeignKeys[0].RefTable).To(Equal(migrate.OllamaEndpointsTable))
		Expect(migrate.ModelsTable.ForeignKeys[0].OnDelete).To(Equal(sqlschema.Cascade))
	})
})

var _ = Describe("Schema.Create", func() {
	var db *sql.DB

	BeforeEach(func() {
		var err error
		db, err = sql.Open("sqlite3", "file:migrate-"+uuid.NewString()+"?mode=memory&cache=shared&_foreign_keys=on")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(db.Close)
	})

	tables := func() []string {
		rows, err := db.Query("SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
		Expect(err).NotTo(HaveOccurred())
		defer rows.Close()

		var names []string
		for rows.Next() {
			var name string
			Expect(rows.Scan(&name)).To(Succeed())
			names = append(names, name)
		}
		return names
	}

	It("creates every table and is safe to rerun", func() {
		ctx := context.Background()
		s := migrate.NewSchema(sqldialect.OpenDB(dialect.SQLite, db))

		Expect(s.Create(ctx)).To(Succeed())
		Expect(tables()).To(ConsistOf(
			"audit_logs", "conversations", "messages", "models",
			"ollama_endpoints", "profiles", "usage_logs",
		))

		Expect(s.Create(ctx)).To(Succeed())
	})
})
