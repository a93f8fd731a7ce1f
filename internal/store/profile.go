package store

import (
	"database/sql"
	"errors"
	"time"
)

// Profile is a named set of rep counter thresholds.
type Profile struct {
	ID            string
	Name          string
	ElbowDownMax  float64
	ElbowUpMin    float64
	HipTolerance  float64
	Side          string
	MinConfidence float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProfileRepository provides CRUD operations for threshold profiles.
type ProfileRepository struct {
	db *sql.DB
}

// Profiles returns the profile repository for this store.
func (s *Store) Profiles() *ProfileRepository {
	return &ProfileRepository{db: s.db}
}

const profileColumns = `id, name, elbow_down_max, elbow_up_min, hip_tolerance, side, min_confidence, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*Profile, error) {
	p := &Profile{}
	err := row.Scan(&p.ID, &p.Name, &p.ElbowDownMax, &p.ElbowUpMin, &p.HipTolerance,
		&p.Side, &p.MinConfidence, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a new profile into the database.
func (r *ProfileRepository) Create(p *Profile) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Side == "" {
		p.Side = "left"
	}

	_, err := r.db.Exec(
		`INSERT INTO profiles (`+profileColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.ElbowDownMax, p.ElbowUpMin, p.HipTolerance,
		p.Side, p.MinConfidence, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// GetByID retrieves a profile by its ID.
func (r *ProfileRepository) GetByID(id string) (*Profile, error) {
	p, err := scanProfile(r.db.QueryRow(
		`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// GetByName retrieves a profile by its name.
func (r *ProfileRepository) GetByName(name string) (*Profile, error) {
	p, err := scanProfile(r.db.QueryRow(
		`SELECT `+profileColumns+` FROM profiles WHERE name = ?`, name,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// List retrieves all profiles ordered by name.
func (r *ProfileRepository) List() ([]*Profile, error) {
	rows, err := r.db.Query(`SELECT ` + profileColumns + ` FROM profiles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return profiles, nil
}

// Update updates an existing profile in the database.
func (r *ProfileRepository) Update(p *Profile) error {
	p.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE profiles SET name = ?, elbow_down_max = ?, elbow_up_min = ?, hip_tolerance = ?,
		 side = ?, min_confidence = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name, p.ElbowDownMax, p.ElbowUpMin, p.HipTolerance,
		p.Side, p.MinConfidence, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// Delete removes a profile and its scoped hooks. If it was the active
// profile, the active setting is cleared.
func (r *ProfileRepository) Delete(id string) error {
	return inTx(r.db, func(tx *sql.Tx) error {
		result, err := tx.Exec(`DELETE FROM profiles WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if err := checkAffected(result); err != nil {
			return err
		}
		_, err = tx.Exec(`DELETE FROM settings WHERE key = ? AND value = ?`, SettingActiveProfile, id)
		return err
	})
}
