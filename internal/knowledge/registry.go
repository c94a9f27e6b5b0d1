package knowledge

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/fyrsmithlabs/llkb/internal/jsonstore"
)

// ModuleInfo maps an exported component name to its file module.
type ModuleInfo struct {
	ComponentID string    `json:"componentId"`
	FilePath    string    `json:"filePath"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ModuleRegistryFile maps exported component names to file-module metadata.
// It is kept consistent with the components file by explicit sync and
// validation, not automatically.
type ModuleRegistryFile struct {
	Version     string                `json:"version"`
	LastUpdated time.Time             `json:"lastUpdated"`
	Modules     map[string]ModuleInfo `json:"modules"`
}

// LoadRegistry reads the module registry, defaulting when missing.
func (s *Store) LoadRegistry() (*ModuleRegistryFile, error) {
	var file ModuleRegistryFile
	if err := jsonstore.Load(s.RegistryPath(), &file); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ModuleRegistryFile{Version: CurrentVersion, Modules: map[string]ModuleInfo{}}, nil
		}
		return nil, err
	}
	if file.Modules == nil {
		file.Modules = map[string]ModuleInfo{}
	}
	return &file, nil
}

// SyncRegistry rebuilds the module registry from the current components
// file, dropping entries whose component no longer exists.
func (s *Store) SyncRegistry() error {
	components, err := s.LoadComponents()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	return jsonstore.UpdateWithLock(s.RegistryPath(), func(cur ModuleRegistryFile) (ModuleRegistryFile, error) {
		modules := make(map[string]ModuleInfo, len(components.Components))
		for _, c := range components.Components {
			if c.Archived || c.FilePath == "" {
				continue
			}
			info := ModuleInfo{ComponentID: c.ID, FilePath: c.FilePath, UpdatedAt: now}
			if prev, ok := cur.Modules[c.Name]; ok && prev.ComponentID == c.ID && prev.FilePath == c.FilePath {
				info.UpdatedAt = prev.UpdatedAt
			}
			modules[c.Name] = info
		}
		return ModuleRegistryFile{
			Version:     CurrentVersion,
			LastUpdated: now,
			Modules:     modules,
		}, nil
	})
}

// ValidateRegistry compares the registry against the components file and
// returns a human-readable list of inconsistencies. An empty list means the
// two are in sync.
func (s *Store) ValidateRegistry() ([]string, error) {
	registry, err := s.LoadRegistry()
	if err != nil {
		return nil, err
	}
	components, err := s.LoadComponents()
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Component, len(components.Components))
	byName := make(map[string]Component, len(components.Components))
	for _, c := range components.Components {
		byID[c.ID] = c
		byName[c.Name] = c
	}

	var problems []string
	for name, info := range registry.Modules {
		c, ok := byID[info.ComponentID]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("registry entry %q references unknown component %s", name, info.ComponentID))
		case c.Archived:
			problems = append(problems, fmt.Sprintf("registry entry %q references archived component %s", name, info.ComponentID))
		case c.Name != name:
			problems = append(problems, fmt.Sprintf("registry entry %q does not match component name %q", name, c.Name))
		case c.FilePath != info.FilePath:
			problems = append(problems, fmt.Sprintf("registry entry %q path %q does not match component path %q", name, info.FilePath, c.FilePath))
		}
	}
	for _, c := range components.Components {
		if c.Archived || c.FilePath == "" {
			continue
		}
		if _, ok := registry.Modules[c.Name]; !ok {
			problems = append(problems, fmt.Sprintf("component %q (%s) missing from registry", c.Name, c.ID))
		}
	}
	return problems, nil
}
