package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// HookEvent names the session event a hook fires on.
type HookEvent string

const (
	// HookEventRep fires when a repetition is counted.
	HookEventRep HookEvent = "rep"
	// HookEventAdvisory fires when a form advisory is newly raised.
	HookEventAdvisory HookEvent = "advisory"
)

// ValidHookEvent reports whether e is a known hook event.
func ValidHookEvent(e HookEvent) bool {
	return e == HookEventRep || e == HookEventAdvisory
}

// Hook binds a session event to a plugin action. A hook with an empty
// ProfileID applies to every profile.
type Hook struct {
	ID         string
	Event      HookEvent
	ProfileID  string
	PluginName string
	ActionName string
	Config     json.RawMessage
	Enabled    bool
	CreatedAt  time.Time
}

// HookRepository provides CRUD operations for hooks.
type HookRepository struct {
	db *sql.DB
}

// Hooks returns the hook repository for this store.
func (s *Store) Hooks() *HookRepository {
	return &HookRepository{db: s.db}
}

const hookColumns = `id, event, profile_id, plugin_name, action_name, config, enabled, created_at`

func scanHook(row rowScanner) (*Hook, error) {
	h := &Hook{}
	var (
		event     string
		profileID sql.NullString
		config    string
		enabled   int
	)

	err := row.Scan(&h.ID, &event, &profileID, &h.PluginName, &h.ActionName, &config, &enabled, &h.CreatedAt)
	if err != nil {
		return nil, err
	}

	h.Event = HookEvent(event)
	h.ProfileID = profileID.String
	h.Config = json.RawMessage(config)
	h.Enabled = enabled != 0
	return h, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func hookConfig(h *Hook) string {
	if len(h.Config) == 0 {
		return "{}"
	}
	return string(h.Config)
}

// Create inserts a new hook into the database.
func (r *HookRepository) Create(h *Hook) error {
	h.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO hooks (`+hookColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, string(h.Event), nullable(h.ProfileID), h.PluginName, h.ActionName,
		hookConfig(h), h.Enabled, h.CreatedAt,
	)
	return err
}

// GetByID retrieves a hook by its ID.
func (r *HookRepository) GetByID(id string) (*Hook, error) {
	h, err := scanHook(r.db.QueryRow(`SELECT `+hookColumns+` FROM hooks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return h, err
}

// List retrieves all hooks from the database.
func (r *HookRepository) List() ([]*Hook, error) {
	return r.query(`SELECT ` + hookColumns + ` FROM hooks ORDER BY created_at`)
}

// ListForEvent returns the enabled hooks for event that apply to profileID.
// Unscoped hooks are always included.
func (r *HookRepository) ListForEvent(event HookEvent, profileID string) ([]*Hook, error) {
	return r.query(
		`SELECT `+hookColumns+` FROM hooks
		 WHERE event = ? AND enabled = 1 AND (profile_id IS NULL OR profile_id = ?)
		 ORDER BY created_at`,
		string(event), profileID,
	)
}

func (r *HookRepository) query(q string, args ...any) ([]*Hook, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hooks []*Hook
	for rows.Next() {
		h, err := scanHook(rows)
		if err != nil {
			return nil, err
		}
		hooks = append(hooks, h)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return hooks, nil
}

// Update updates an existing hook in the database.
func (r *HookRepository) Update(h *Hook) error {
	enabled := 0
	if h.Enabled {
		enabled = 1
	}

	result, err := r.db.Exec(
		`UPDATE hooks SET event = ?, profile_id = ?, plugin_name = ?, action_name = ?, config = ?, enabled = ?
		 WHERE id = ?`,
		string(h.Event), nullable(h.ProfileID), h.PluginName, h.ActionName, hookConfig(h), enabled, h.ID,
	)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// Delete removes a hook from the database by its ID.
func (r *HookRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM hooks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}
