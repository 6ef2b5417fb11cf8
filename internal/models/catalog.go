// Package models resolves the model names accepted by the engine to the
// identifiers passed to the CLI with --model or a set_model request.
package models

import (
	"slices"
	"strings"
)

// Family groups models of the same class.
type Family string

const (
	FamilyOpus   Family = "opus"
	FamilySonnet Family = "sonnet"
	FamilyHaiku  Family = "haiku"
)

// Model describes one known Claude model.
type Model struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Family  Family   `json:"family"`
	Aliases []string `json:"aliases,omitempty"`
}

// catalog lists known models, newest first within each family.
// Only the newest model of a family carries the family alias.
var catalog = []Model{
	{ID: "claude-opus-4-6", Name: "Claude Opus 4.6", Family: FamilyOpus, Aliases: []string{"opus"}},
	{ID: "claude-sonnet-4-6", Name: "Claude Sonnet 4.6", Family: FamilySonnet, Aliases: []string{"sonnet"}},
	{ID: "claude-haiku-4-5", Name: "Claude Haiku 4.5", Family: FamilyHaiku, Aliases: []string{"haiku"}},
	{ID: "claude-opus-4-5", Name: "Claude Opus 4.5", Family: FamilyOpus},
	{ID: "claude-sonnet-4-5", Name: "Claude Sonnet 4.5", Family: FamilySonnet},
	{ID: "claude-opus-4-1", Name: "Claude Opus 4.1", Family: FamilyOpus},
	{ID: "claude-opus-4-0", Name: "Claude Opus 4", Family: FamilyOpus},
	{ID: "claude-sonnet-4-0", Name: "Claude Sonnet 4", Family: FamilySonnet},
}

// All returns a copy of the catalog.
func All() []Model {
	out := make([]Model, len(catalog))
	for i, m := range catalog {
		out[i] = m
		out[i].Aliases = slices.Clone(m.Aliases)
	}

	return out
}

// Lookup finds a model by exact ID, then alias, then by a known ID prefix
// (dated identifiers such as "claude-opus-4-6-20260205"). Matching ignores
// case and surrounding whitespace.
func Lookup(name string) (Model, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Model{}, false
	}

	matchers := []func(Model) bool{
		func(m Model) bool { return m.ID == name },
		func(m Model) bool { return slices.Contains(m.Aliases, name) },
		func(m Model) bool { return strings.HasPrefix(name, m.ID+"-") },
	}

	for _, match := range matchers {
		if i := slices.IndexFunc(catalog, match); i >= 0 {
			return catalog[i], true
		}
	}

	return Model{}, false
}

// Resolve maps name to the identifier to hand the CLI. Aliases become
// canonical IDs and dated IDs are kept as given. Unknown names pass through
// unchanged with known set to false, since the CLI may know newer models.
func Resolve(name string) (id string, known bool) {
	m, ok := Lookup(name)
	if !ok {
		return strings.TrimSpace(name), false
	}

	trimmed := strings.ToLower(strings.TrimSpace(name))
	if strings.HasPrefix(trimmed, m.ID+"-") {
		return trimmed, true
	}

	return m.ID, true
}

// Same reports whether a and b name the same model.
func Same(a, b string) bool {
	ra, _ := Resolve(a)
	rb, _ := Resolve(b)

	return ra == rb
}
