package profiles

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kartoza/laptop-pricer/internal/collector"
)

// timeFormat is fixed width so timestamps sort as strings.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned for an unknown profile id.
var ErrNotFound = errors.New("profile not found")

// Profile is a saved laptop configuration. Prices are never stored; a
// profile is re-priced against whatever model is loaded.
type Profile struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Form        collector.Form `json:"form"`
	CreatedAt   string         `json:"createdAt"`
	UpdatedAt   string         `json:"updatedAt"`
}

// Store handles profile persistence, one JSON file per profile
type Store struct {
	profilesDir string
	mu          sync.RWMutex
}

// NewStore creates a new profile store under dataDir
func NewStore(dataDir string) (*Store, error) {
	profilesDir := filepath.Join(dataDir, "profiles")

	// Ensure directory exists
	if err := os.MkdirAll(profilesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create profiles directory: %w", err)
	}

	return &Store{profilesDir: profilesDir}, nil
}

// List returns all profiles sorted by creation date (newest first)
func (s *Store) List() ([]*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.profilesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles directory: %w", err)
	}

	profiles := []*Profile{}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			profile, err := s.load(entry.Name())
			if err != nil {
				continue // Skip invalid profiles
			}
			profiles = append(profiles, profile)
		}
	}

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].CreatedAt > profiles[j].CreatedAt
	})

	return profiles, nil
}

// Get retrieves a profile by ID
func (s *Store) Get(id string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(id)
}

// Create stores a new profile, assigning its ID and timestamps
func (s *Store) Create(profile *Profile) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile.ID = uuid.New().String()
	now := time.Now().UTC().Format(timeFormat)
	profile.CreatedAt = now
	profile.UpdatedAt = now
	if profile.Title == "" {
		profile.Title = fmt.Sprintf("%s %s", profile.Form.Company, profile.Form.TypeName)
	}

	if err := s.save(profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// Update applies non-empty fields of updates to an existing profile
func (s *Store) Update(id string, updates *Profile) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, err := s.get(id)
	if err != nil {
		return nil, err
	}

	if updates.Title != "" {
		profile.Title = updates.Title
	}
	if updates.Description != "" {
		profile.Description = updates.Description
	}
	if updates.Form != (collector.Form{}) {
		profile.Form = updates.Form
	}
	profile.UpdatedAt = time.Now().UTC().Format(timeFormat)

	if err := s.save(profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// Delete removes a profile
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.get(id); err != nil {
		return err
	}
	return os.Remove(s.path(id))
}

func (s *Store) path(id string) string {
	return filepath.Join(s.profilesDir, id+".json")
}

func (s *Store) get(id string) (*Profile, error) {
	// IDs are uuids; anything else cannot name a file in the store.
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	profile, err := s.load(id + ".json")
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return profile, err
}

// load loads a profile from disk
func (s *Store) load(filename string) (*Profile, error) {
	data, err := os.ReadFile(filepath.Join(s.profilesDir, filename))
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}

	var profile Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	return &profile, nil
}

// save writes a profile to disk
func (s *Store) save(profile *Profile) error {
	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	if err := os.WriteFile(s.path(profile.ID), data, 0644); err != nil {
		return fmt.Errorf("failed to write profile file: %w", err)
	}
	return nil
}
