// Package profile loads vehicle descriptors and serves them read-only.
package profile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/autopeer-io/drivelink/pkg/log"
)

// ErrNotFound is returned by Get for an unknown vehicle id.
var ErrNotFound = errors.New("vehicle profile not found")

// LoadError reports a profile file that was skipped.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load vehicle profile %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadAll reads every *.json, *.yaml and *.yml file in dir. Malformed files
// are logged and skipped; they are also returned as LoadErrors so callers
// can surface them. A missing directory yields no profiles and no error.
func LoadAll(dir string) ([]*Profile, []error) {
	logger := log.WithName("profile").WithValues("dir", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Vehicle profile directory does not exist")
			return nil, nil
		}
		logger.Error(err, "Failed to read vehicle profile directory")
		return nil, []error{&LoadError{Path: dir, Err: err}}
	}

	var (
		profiles []*Profile
		problems []error
		seen     = map[string]string{}
	)

	for _, e := range entries {
		if e.IsDir() || !isProfileFile(e.Name()) {
			continue
		}

		path := filepath.Join(dir, e.Name())
		p, err := LoadFile(path)
		if err == nil {
			if first, dup := seen[p.ID]; dup {
				err = &LoadError{Path: path, Err: fmt.Errorf("duplicate id %q, already defined in %s", p.ID, first)}
			}
		}
		if err != nil {
			logger.Error(err, "Skipping vehicle profile", "file", e.Name())
			problems = append(problems, err)
			continue
		}

		seen[p.ID] = path
		profiles = append(profiles, p)
		logger.Debug("Loaded vehicle profile", "id", p.ID, "file", e.Name())
	}

	logger.Info("Vehicle profiles loaded", "count", len(profiles), "skipped", len(problems))
	return profiles, problems
}

// LoadFile decodes and validates a single profile file.
func LoadFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	p := newDefaultProfile()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		err = dec.Decode(p)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, p)
	default:
		err = fmt.Errorf("unsupported extension %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	if err := p.Validate(); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return p, nil
}

func isProfileFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return !strings.HasPrefix(name, ".")
	}
	return false
}

// Store is an immutable set of profiles keyed by id. It is safe for
// concurrent reads.
type Store struct {
	byID map[string]*Profile
	ids  []string
}

// NewStore indexes profiles by id. Later duplicates are ignored.
func NewStore(profiles []*Profile) *Store {
	s := &Store{byID: make(map[string]*Profile, len(profiles))}
	for _, p := range profiles {
		if p == nil {
			continue
		}
		if _, ok := s.byID[p.ID]; ok {
			continue
		}
		s.byID[p.ID] = p
		s.ids = append(s.ids, p.ID)
	}
	sort.Strings(s.ids)
	return s
}

// Open loads dir and returns the resulting store.
func Open(dir string) *Store {
	profiles, _ := LoadAll(dir)
	return NewStore(profiles)
}

// Get returns the profile with the given id.
func (s *Store) Get(id string) (*Profile, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	p, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return p, nil
}

// List returns all profiles ordered by id.
func (s *Store) List() []*Profile {
	if s == nil {
		return nil
	}
	out := make([]*Profile, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.byID[id])
	}
	return out
}

// Len returns the number of profiles.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// LimitsFor returns the command limits of the given vehicle, or the default
// limits when it has no profile.
func (s *Store) LimitsFor(id string) Limits {
	p, err := s.Get(id)
	if err != nil {
		return DefaultLimits()
	}
	return p.CommandLimits()
}
