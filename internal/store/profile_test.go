package store

import (
	"errors"
	"testing"
)

func newProfile(id, name string) *Profile {
	return &Profile{
		ID:            id,
		Name:          name,
		ElbowDownMax:  90,
		ElbowUpMin:    160,
		HipTolerance:  15,
		Side:          "left",
		MinConfidence: 0.3,
	}
}

func TestProfileRepository_Create(t *testing.T) {
	s := newTestStore(t)
	repo := s.Profiles()

	p := newProfile("p-1", "standard")
	p.Side = ""
	if err := repo.Create(p); err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}

	if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
		t.Error("timestamps should be set after create")
	}
	if p.Side != "left" {
		t.Errorf("Side = %q, want left default", p.Side)
	}

	got, err := repo.GetByID("p-1")
	if err != nil {
		t.Fatalf("failed to get profile by ID: %v", err)
	}
	if got.Name != "standard" || got.ElbowDownMax != 90 || got.ElbowUpMin != 160 || got.HipTolerance != 15 {
		t.Errorf("profile mismatch: %+v", got)
	}
	if got.MinConfidence != 0.3 {
		t.Errorf("MinConfidence = %f, want 0.3", got.MinConfidence)
	}

	byName, err := repo.GetByName("standard")
	if err != nil {
		t.Fatalf("failed to get profile by name: %v", err)
	}
	if byName.ID != "p-1" {
		t.Errorf("GetByName returned ID %q, want p-1", byName.ID)
	}
}

func TestProfileRepository_Create_Invalid(t *testing.T) {
	s := newTestStore(t)
	repo := s.Profiles()

	if err := repo.Create(newProfile("p-1", "standard")); err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}

	tests := []struct {
		name    string
		profile *Profile
	}{
		{name: "duplicate name", profile: newProfile("p-2", "standard")},
		{name: "duplicate id", profile: newProfile("p-1", "other")},
		{name: "unknown side", profile: func() *Profile {
			p := newProfile("p-3", "sideways")
			p.Side = "middle"
			return p
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.Create(tt.profile); err == nil {
				t.Error("Create() should fail")
			}
		})
	}
}

func TestProfileRepository_List(t *testing.T) {
	s := newTestStore(t)
	repo := s.Profiles()

	for _, p := range []*Profile{
		newProfile("p-1", "strict"),
		newProfile("p-2", "beginner"),
		newProfile("p-3", "knees"),
	} {
		if err := repo.Create(p); err != nil {
			t.Fatalf("failed to create profile: %v", err)
		}
	}

	profiles, err := repo.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	want := []string{"beginner", "knees", "strict"}
	if len(profiles) != len(want) {
		t.Fatalf("len(List()) = %d, want %d", len(profiles), len(want))
	}
	for i, name := range want {
		if profiles[i].Name != name {
			t.Errorf("profiles[%d].Name = %q, want %q", i, profiles[i].Name, name)
		}
	}
}

func TestProfileRepository_Update(t *testing.T) {
	s := newTestStore(t)
	repo := s.Profiles()

	p := newProfile("p-1", "standard")
	if err := repo.Create(p); err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}
	created := p.UpdatedAt

	p.Name = "deep"
	p.ElbowDownMax = 75
	p.Side = "right"
	if err := repo.Update(p); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !p.UpdatedAt.After(created) && !p.UpdatedAt.Equal(created) {
		t.Error("UpdatedAt should not go backwards")
	}

	got, err := repo.GetByID("p-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "deep" || got.ElbowDownMax != 75 || got.Side != "right" {
		t.Errorf("updated profile = %+v", got)
	}
}

func TestProfileRepository_NotFound(t *testing.T) {
	s := newTestStore(t)
	repo := s.Profiles()

	if _, err := repo.GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetByName("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByName() error = %v, want ErrNotFound", err)
	}
	if err := repo.Update(newProfile("missing", "x")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
	if err := repo.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestProfileRepository_DeleteCascades(t *testing.T) {
	s := newTestStore(t)

	if err := s.Profiles().Create(newProfile("p-1", "standard")); err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}
	if err := s.SetActiveProfile("p-1"); err != nil {
		t.Fatalf("SetActiveProfile() error = %v", err)
	}
	hook := &Hook{ID: "h-1", Event: HookEventRep, ProfileID: "p-1", PluginName: "announce", ActionName: "say", Enabled: true}
	if err := s.Hooks().Create(hook); err != nil {
		t.Fatalf("failed to create hook: %v", err)
	}

	if err := s.Profiles().Delete("p-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := s.Hooks().GetByID("h-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("scoped hook should be deleted with its profile, got %v", err)
	}
	if _, err := s.ActiveProfile(); !errors.Is(err, ErrNotFound) {
		t.Errorf("ActiveProfile() error = %v, want ErrNotFound after delete", err)
	}
}
