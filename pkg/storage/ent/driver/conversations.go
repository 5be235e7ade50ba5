package entdriver

import (
	"context"
	stdsql "database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/papercomputeco/chatrelay/pkg/storage"
)

var (
	profileColumns      = []string{"id", "email", "full_name", "role", "is_active", "created_at"}
	conversationColumns = []string{"id", "user_id", "title", "model_id", "created_at", "updated_at"}
	messageColumns      = []string{"id", "conversation_id", "role", "content", "tokens", "created_at"}
)

func scanProfile(row scanner) (*storage.Profile, error) {
	var p storage.Profile
	var role string
	if err := row.Scan(&p.ID, &p.Email, &p.FullName, &role, &p.IsActive, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Role = storage.Role(role)
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

func scanConversation(row scanner) (*storage.Conversation, error) {
	var c storage.Conversation
	var modelID stdsql.NullString
	if err := row.Scan(&c.ID, &c.UserID, &c.Title, &modelID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ModelID = stringPtr(modelID)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

func scanMessage(row scanner) (*storage.Message, error) {
	var m storage.Message
	var role string
	var tokens stdsql.NullInt64
	if err := row.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &tokens, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Role = storage.MessageRole(role)
	m.Tokens = intPtr(tokens)
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

// Profiles

func (ed *EntDriver) GetProfile(ctx context.Context, id string) (*storage.Profile, error) {
	q := ed.selectFrom("profiles", profileColumns...).Where(sql.EQ("id", id))
	return queryOne(ctx, ed.drv, q, scanProfile, "profile", id)
}

func (ed *EntDriver) UpsertProfile(ctx context.Context, profile *storage.Profile) (*storage.Profile, error) {
	p := *profile
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Role == "" {
		p.Role = storage.RoleUser
	}

	insert := ed.builder().Insert("profiles").
		Columns(profileColumns...).
		Values(p.ID, p.Email, p.FullName, string(p.Role), p.IsActive, ed.now()).
		OnConflict(
			sql.ConflictColumns("id"),
			sql.ResolveWith(func(u *sql.UpdateSet) {
				u.SetExcluded("email")
				u.SetExcluded("full_name")
				u.SetExcluded("role")
				u.SetExcluded("is_active")
			}),
		)
	if _, err := exec(ctx, ed.drv, insert); err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}
	return ed.GetProfile(ctx, p.ID)
}

// Conversations

func (ed *EntDriver) CreateConversation(ctx context.Context, userID, title string, modelID *string) (*storage.Conversation, error) {
	now := ed.now()
	c := &storage.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		ModelID:   modelID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	insert := ed.builder().Insert("conversations").
		Columns(conversationColumns...).
		Values(c.ID, c.UserID, c.Title, nullString(c.ModelID), c.CreatedAt, c.UpdatedAt)
	if _, err := exec(ctx, ed.drv, insert); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return c, nil
}

func (ed *EntDriver) ListConversations(ctx context.Context, userID string) ([]*storage.Conversation, error) {
	q := ed.selectFrom("conversations", conversationColumns...).
		Where(sql.EQ("user_id", userID)).
		OrderBy(sql.Desc("updated_at"), "id")

	out, err := queryAll(ctx, ed.drv, q, scanConversation)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return out, nil
}

func (ed *EntDriver) GetConversation(ctx context.Context, userID, id string) (*storage.Conversation, error) {
	q := ed.selectFrom("conversations", conversationColumns...).
		Where(sql.And(sql.EQ("id", id), sql.EQ("user_id", userID)))
	return queryOne(ctx, ed.drv, q, scanConversation, "conversation", id)
}

func (ed *EntDriver) UpdateConversation(ctx context.Context, userID, id string, upd storage.ConversationUpdate) (*storage.Conversation, error) {
	update := ed.builder().Update("conversations")
	if upd.Title != nil {
		update.Set("title", *upd.Title)
	}
	if upd.ModelID != nil {
		update.Set("model_id", nullString(upd.ModelID))
	}
	update.Set("updated_at", ed.now()).
		Where(sql.And(sql.EQ("id", id), sql.EQ("user_id", userID)))

	n, err := exec(ctx, ed.drv, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	if err := requireAffected(n, "conversation", id); err != nil {
		return nil, err
	}
	return ed.GetConversation(ctx, userID, id)
}

func (ed *EntDriver) DeleteConversation(ctx context.Context, userID, id string) error {
	return ed.inTx(ctx, func(tx dialect.Tx) error {
		owned := ed.selectFrom("conversations", "id").
			Where(sql.And(sql.EQ("id", id), sql.EQ("user_id", userID)))
		if _, err := queryOne(ctx, tx, owned, scanString, "conversation", id); err != nil {
			return err
		}

		b := ed.builder()
		if _, err := exec(ctx, tx, b.Delete("messages").Where(sql.EQ("conversation_id", id))); err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		if _, err := exec(ctx, tx, b.Delete("conversations").Where(sql.EQ("id", id))); err != nil {
			return fmt.Errorf("failed to delete conversation: %w", err)
		}
		return nil
	})
}

func (ed *EntDriver) TouchConversation(ctx context.Context, conversationID string) error {
	update := ed.builder().Update("conversations").
		Set("updated_at", ed.now()).
		Where(sql.EQ("id", conversationID))

	n, err := exec(ctx, ed.drv, update)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return requireAffected(n, "conversation", conversationID)
}

// Messages

func (ed *EntDriver) InsertMessage(ctx context.Context, conversationID string, role storage.MessageRole, content string, tokens *int) (*storage.Message, error) {
	m := &storage.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Tokens:         tokens,
		CreatedAt:      ed.now(),
	}

	err := ed.inTx(ctx, func(tx dialect.Tx) error {
		ok, err := ed.exists(ctx, tx, "conversations", conversationID)
		if err != nil {
			return fmt.Errorf("failed to look up conversation: %w", err)
		}
		if !ok {
			return storage.NotFoundError{Resource: "conversation", ID: conversationID}
		}

		insert := ed.builder().Insert("messages").
			Columns(messageColumns...).
			Values(m.ID, m.ConversationID, string(m.Role), m.Content, nullInt(m.Tokens), m.CreatedAt)
		if _, err := exec(ctx, tx, insert); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (ed *EntDriver) ListMessages(ctx context.Context, conversationID string) ([]*storage.Message, error) {
	q := ed.selectFrom("messages", messageColumns...).
		Where(sql.EQ("conversation_id", conversationID)).
		OrderBy("created_at", "id")

	out, err := queryAll(ctx, ed.drv, q, scanMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return out, nil
}
