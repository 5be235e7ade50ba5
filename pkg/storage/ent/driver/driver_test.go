package entdriver_test

import (
	"context"
	"database/sql"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/storage"
	entdriver "github.com/papercomputeco/chatrelay/pkg/storage/ent/driver"
	"github.com/papercomputeco/chatrelay/pkg/storage/storagetest"
)

func openSQLite() *sql.DB {
	db, err := sql.Open("sqlite3", "file:entdriver-"+uuid.NewString()+"?mode=memory&cache=shared&_foreign_keys=on")
	Expect(err).NotTo(HaveOccurred())
	return db
}

func newDriver(opts ...entdriver.Option) *entdriver.EntDriver {
	ed := entdriver.New(entsql.OpenDB(dialect.SQLite, openSQLite()), opts...)
	Expect(ed.Migrate(context.Background())).To(Succeed())
	return ed
}

var _ = storagetest.DescribeDriver("ent", func() storage.Driver {
	return newDriver()
})

var _ = Describe("EntDriver", func() {
	var (
		ctx   context.Context
		clock time.Time
		ed    *entdriver.EntDriver
	)

	BeforeEach(func() {
		ctx = context.Background()
		clock = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		ed = newDriver(entdriver.WithClock(func() time.Time { return clock }))
		DeferCleanup(ed.Close)
	})

	It("stamps rows with the configured clock", func() {
		c, err := ed.CreateConversation(ctx, "u", "first", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.CreatedAt).To(Equal(clock))

		clock = clock.Add(time.Minute)
		Expect(ed.TouchConversation(ctx, c.ID)).To(Succeed())

		got, err := ed.GetConversation(ctx, "u", c.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.CreatedAt).To(BeTemporally("==", clock.Add(-time.Minute)))
		Expect(got.UpdatedAt).To(BeTemporally("==", clock))
	})

	It("migrates an existing database without losing rows", func() {
		c, err := ed.CreateConversation(ctx, "u", "kept", nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(ed.Migrate(ctx)).To(Succeed())

		got, err := ed.GetConversation(ctx, "u", c.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Title).To(Equal("kept"))
	})

	It("keeps created_at and id when a profile is upserted again", func() {
		first, err := ed.UpsertProfile(ctx, &storage.Profile{ID: "p1", Email: "a@example.com", IsActive: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Role).To(Equal(storage.RoleUser))

		clock = clock.Add(time.Hour)
		second, err := ed.UpsertProfile(ctx, &storage.Profile{ID: "p1", Email: "b@example.com", Role: storage.RoleAdmin, IsActive: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Email).To(Equal("b@example.com"))
		Expect(second.Role).To(Equal(storage.RoleAdmin))
		Expect(second.CreatedAt).To(BeTemporally("==", first.CreatedAt))
	})

	It("rolls back a conversation delete that is not owned", func() {
		c, err := ed.CreateConversation(ctx, "owner", "mine", nil)
		Expect(err).NotTo(HaveOccurred())
		_, err = ed.InsertMessage(ctx, c.ID, storage.MessageRoleUser, "hi", nil)
		Expect(err).NotTo(HaveOccurred())

		err = ed.DeleteConversation(ctx, "intruder", c.ID)
		Expect(storage.IsNotFound(err)).To(BeTrue())

		msgs, err := ed.ListMessages(ctx, c.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(1))
	})

	It("exposes the database handle", func() {
		Expect(ed.DB().PingContext(ctx)).To(Succeed())
	})
})
