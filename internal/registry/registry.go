// Package registry resolves model aliases to concrete provider/model pairs
// from the on-disk model configuration.
package registry

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"ragchat-router/internal/config"
)

// ErrConfigUnavailable indicates the model configuration file is missing or
// unreadable.
var ErrConfigUnavailable = errors.New("model configuration unavailable")

// ErrAliasNotFound indicates the requested alias is not configured.
var ErrAliasNotFound = errors.New("model alias not found")

// Target is the concrete provider/model pair an alias resolves to.
type Target struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Resolver resolves a model alias to its target.
type Resolver interface {
	Resolve(alias string) (Target, error)
}

// Registry is an immutable snapshot of the alias table. Configuration is
// loaded at most once per Registry; reloading requires a process restart.
// Safe for concurrent read-only use.
type Registry struct {
	path string

	once    sync.Once
	aliases map[string]Target
	loadErr error
}

// NewFromFile returns a registry backed by the configuration file at path.
// The file is read lazily on first access.
func NewFromFile(path string) *Registry {
	return &Registry{path: path}
}

// NewFromConfig returns a registry seeded from an already-parsed
// configuration, skipping the file read.
func NewFromConfig(cfg config.Config) *Registry {
	r := &Registry{}
	r.once.Do(func() {})
	r.aliases = make(map[string]Target, len(cfg.Aliases))
	for alias, target := range cfg.Aliases {
		r.aliases[alias] = Target{Provider: target.Provider, Model: target.Model}
	}
	return r
}

func (r *Registry) load() {
	data, err := os.ReadFile(r.path)
	if err != nil {
		r.loadErr = fmt.Errorf("%w: read %q: %v", ErrConfigUnavailable, r.path, err)
		return
	}

	var doc struct {
		Aliases map[string]Target `yaml:"aliases"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		r.loadErr = fmt.Errorf("%w: parse %q: %v", ErrConfigUnavailable, r.path, err)
		return
	}

	r.aliases = doc.Aliases
}

// Resolve returns the provider/model pair configured for alias.
func (r *Registry) Resolve(alias string) (Target, error) {
	r.once.Do(r.load)

	if r.loadErr != nil {
		return Target{}, r.loadErr
	}

	target, ok := r.aliases[alias]
	if !ok {
		return Target{}, fmt.Errorf("%w: alias %q is not configured", ErrAliasNotFound, alias)
	}
	return target, nil
}

// Aliases returns a copy of the full alias table for client discovery.
func (r *Registry) Aliases() (map[string]Target, error) {
	r.once.Do(r.load)

	if r.loadErr != nil {
		return nil, r.loadErr
	}

	out := make(map[string]Target, len(r.aliases))
	for alias, target := range r.aliases {
		out[alias] = target
	}
	return out, nil
}
