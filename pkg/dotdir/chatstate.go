package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	chatStateFile = "chat.json"
)

// ChatState is the conversation `chatrelay chat` resumes by default.
type ChatState struct {
	ConversationID string `json:"conversation_id"`
	ModelID        string `json:"model_id"`
}

// LoadChatState loads the chat state from the target .chatrelay/chat.json.
// Returns nil, nil if no chat state exists.
func (m *Manager) LoadChatState(overrideDir string) (*ChatState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, chatStateFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading chat state: %w", err)
	}

	state := &ChatState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing chat state: %w", err)
	}

	return state, nil
}

// SaveChatState persists the chat state to the target .chatrelay/chat.json.
func (m *Manager) SaveChatState(state *ChatState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil chat state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling chat state: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, chatStateFile), data, 0o600); err != nil {
		return fmt.Errorf("writing chat state: %w", err)
	}

	return nil
}

// ClearChatState removes the chat state file so the next chat starts a new
// conversation. Returns nil if the file doesn't exist.
func (m *Manager) ClearChatState(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(dir, chatStateFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing chat state: %w", err)
	}

	return nil
}
