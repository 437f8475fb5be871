// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shellmind/shellmind/internal/history"
	"github.com/shellmind/shellmind/internal/util"
)

// =============================================================================
// STORED CONVERSATION TYPE
// =============================================================================

// StoredConversation is a persisted conversation.
type StoredConversation struct {
	ID        string    `json:"id"`
	Summary   string    `json:"summary"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Turns []StoredTurn `json:"turns"`
}

// StoredTurn is one persisted dialogue turn.
type StoredTurn struct {
	Role      string    `json:"role"` // "user" or "model"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// ConversationMeta contains metadata for listing conversations.
type ConversationMeta struct {
	ID        string    `json:"id"`
	Summary   string    `json:"summary"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	TurnCount int       `json:"turn_count"`
	Preview   string    `json:"preview"` // First user turn, truncated
}

// ErrConversationNotFound is returned when a conversation doesn't exist.
var ErrConversationNotFound = errors.New("conversation not found")

// =============================================================================
// HISTORY CONVERSION
// =============================================================================

// FromTurns builds a StoredConversation from live history turns.
func FromTurns(turns []history.Turn, model string) *StoredConversation {
	now := time.Now()
	stored := make([]StoredTurn, 0, len(turns))
	for _, t := range turns {
		stored = append(stored, StoredTurn{Role: string(t.Role), Text: t.Text, Timestamp: now})
	}
	return &StoredConversation{Model: model, Turns: stored}
}

// ToTurns converts persisted turns back to history turns, skipping any with
// an unknown role so a hand-edited file cannot corrupt a request.
func (c *StoredConversation) ToTurns() []history.Turn {
	out := make([]history.Turn, 0, len(c.Turns))
	for _, t := range c.Turns {
		switch history.Role(t.Role) {
		case history.RoleUser:
			out = append(out, history.NewUserTurn(t.Text))
		case history.RoleModel:
			out = append(out, history.NewModelTurn(t.Text))
		}
	}
	return out
}

// Preview returns a one-line preview from the first user turn.
func (c *StoredConversation) Preview() string {
	for _, t := range c.Turns {
		if t.Role == string(history.RoleUser) && t.Text != "" {
			return util.TruncateRunes(util.OneLine(t.Text), 80)
		}
	}
	return ""
}

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// ConversationStore handles conversation persistence.
type ConversationStore struct {
	// BaseDir is the directory holding conversation files.
	// Default: ~/.shellmind/conversations/
	BaseDir string

	// MaxConversations limits stored conversations (0 = unlimited).
	MaxConversations int
}

// NewConversationStore creates a store rooted at the default directory.
func NewConversationStore() (*ConversationStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return NewConversationStoreWithDir(filepath.Join(homeDir, ".shellmind", "conversations"))
}

// NewConversationStoreWithDir creates a store with a custom directory.
func NewConversationStoreWithDir(baseDir string) (*ConversationStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	return &ConversationStore{
		BaseDir:          baseDir,
		MaxConversations: 100,
	}, nil
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save persists a conversation and returns its ID.
func (s *ConversationStore) Save(conv *StoredConversation) (string, error) {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.Summary == "" {
		conv.Summary = s.generateSummary(conv)
	}

	conv.UpdatedAt = time.Now()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = conv.UpdatedAt
	}

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return "", err
	}

	if err := util.AtomicWriteFile(s.filePath(conv.ID), data, 0600); err != nil {
		return "", err
	}

	if s.MaxConversations > 0 {
		s.enforceLimit()
	}

	return conv.ID, nil
}

// generateSummary creates a summary from the first user turn.
func (s *ConversationStore) generateSummary(conv *StoredConversation) string {
	for _, t := range conv.Turns {
		if t.Role == string(history.RoleUser) && t.Text != "" {
			return util.TruncateRunes(util.OneLine(t.Text), 50)
		}
	}
	return "New conversation"
}

// enforceLimit removes the oldest conversations when over the limit.
func (s *ConversationStore) enforceLimit() {
	metas, err := s.List()
	if err != nil || len(metas) <= s.MaxConversations {
		return
	}

	// List returns most recent first; prune from the tail.
	for _, meta := range metas[s.MaxConversations:] {
		s.Delete(meta.ID)
	}
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load retrieves a conversation by ID.
func (s *ConversationStore) Load(id string) (*StoredConversation, error) {
	data, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	var conv StoredConversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// LoadLatest loads the most recently updated conversation.
func (s *ConversationStore) LoadLatest() (*StoredConversation, error) {
	metas, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(metas) == 0 {
		return nil, ErrConversationNotFound
	}
	return s.Load(metas[0].ID)
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// List returns all saved conversations, most recent first.
func (s *ConversationStore) List() ([]ConversationMeta, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ConversationMeta{}, nil
		}
		return nil, err
	}

	var metas []ConversationMeta
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")
		conv, err := s.Load(id)
		if err != nil {
			continue // Skip corrupted files
		}

		metas = append(metas, ConversationMeta{
			ID:        conv.ID,
			Summary:   conv.Summary,
			Model:     conv.Model,
			CreatedAt: conv.CreatedAt,
			UpdatedAt: conv.UpdatedAt,
			TurnCount: len(conv.Turns),
			Preview:   conv.Preview(),
		})
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})

	return metas, nil
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a conversation by ID.
func (s *ConversationStore) Delete(id string) error {
	if err := os.Remove(s.filePath(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrConversationNotFound
		}
		return err
	}
	return nil
}

// Clear removes all saved conversations.
func (s *ConversationStore) Clear() error {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			os.Remove(filepath.Join(s.BaseDir, entry.Name()))
		}
	}
	return nil
}

// filePath returns the file path for a conversation ID.
func (s *ConversationStore) filePath(id string) string {
	return filepath.Join(s.BaseDir, id+".json")
}

// =============================================================================
// LIST FORMATTING
// =============================================================================

// FormatList renders conversation metadata as a plain table for the REPL.
func FormatList(metas []ConversationMeta) string {
	if len(metas) == 0 {
		return "No saved conversations."
	}

	var sb strings.Builder
	sb.WriteString(util.PadRight("ID", 10) + " " + util.PadRight("Updated", 17) + " " + util.PadRight("Turns", 5) + " Preview\n")

	for _, m := range metas {
		id := m.ID
		if len(id) > 8 {
			id = id[:8]
		}
		sb.WriteString(util.PadRight(id, 10) + " " +
			util.PadRight(m.UpdatedAt.Format("2006-01-02 15:04"), 17) + " " +
			util.PadRight(util.IntToString(m.TurnCount), 5) + " " +
			util.TruncateWidth(m.Preview, 40) + "\n")
	}
	return sb.String()
}
