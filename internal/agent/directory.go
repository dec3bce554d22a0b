package agent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned for unknown agent identifiers.
var ErrNotFound = errors.New("agent not found")

// Directory is the read-mostly registry of configured personas. Profiles
// are loaded once at startup; Reload swaps the whole set atomically.
type Directory struct {
	mu       sync.RWMutex
	path     string
	profiles map[string]*Profile
}

// NewDirectory creates a directory backed by a filesystem path containing
// one YAML file per agent.
func NewDirectory(path string) *Directory {
	return &Directory{
		path:     path,
		profiles: make(map[string]*Profile),
	}
}

// Load reads every *.yaml / *.yml file under the directory path. A file
// that fails to parse or validate aborts the load; a half-loaded registry
// is worse than a failed startup.
func (d *Directory) Load() error {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return fmt.Errorf("failed to read agents directory %s: %w", d.path, err)
	}

	profiles := make(map[string]*Profile)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		profile, err := loadProfile(filepath.Join(d.path, entry.Name()))
		if err != nil {
			return err
		}
		if _, dup := profiles[profile.ID]; dup {
			return fmt.Errorf("duplicate agent id %q in %s", profile.ID, entry.Name())
		}
		profiles[profile.ID] = profile
	}

	if len(profiles) == 0 {
		return fmt.Errorf("no agent profiles found in %s", d.path)
	}

	d.mu.Lock()
	d.profiles = profiles
	d.mu.Unlock()

	return nil
}

func loadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent profile %s: %w", path, err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse agent profile %s: %w", path, err)
	}

	profile.applyDefaults()

	if errs := profile.Validate(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid agent profile %s: %s", path, strings.Join(msgs, "; "))
	}

	return &profile, nil
}

// Register adds a profile directly, bypassing the filesystem. Used by tests
// and by embedded setups.
func (d *Directory) Register(profile *Profile) error {
	profile.applyDefaults()
	if errs := profile.Validate(); len(errs) > 0 {
		return errs[0]
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[profile.ID] = profile
	return nil
}

// Get returns the profile for an agent id.
func (d *Directory) Get(agentID string) (*Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	profile, ok := d.profiles[agentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, agentID)
	}
	return profile, nil
}

// List returns every registered profile sorted by id.
func (d *Directory) List() []*Profile {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*Profile, 0, len(d.profiles))
	for _, p := range d.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns every registered agent id sorted.
func (d *Directory) IDs() []string {
	profiles := d.List()
	ids := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
	}
	return ids
}
