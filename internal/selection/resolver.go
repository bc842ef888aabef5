// Package selection turns host selections into per-binary test filters.
package selection

import (
	"strings"

	"github.com/charmbracelet/log"

	"btp/internal/domain"
	"btp/internal/logger"
)

// Plan is what a selection means for one target.
type Plan struct {
	TargetID string
	Items    []domain.SelectionItem
	// Filter lists the target-relative paths to pass to -t. Empty means run everything.
	Filter []string
	// Skip is set when the target's root itself is excluded.
	Skip bool
}

// Resolver resolves selections against the registered targets.
type Resolver struct {
	targets []string
	known   map[string]bool
	log     *log.Logger
}

// NewResolver creates a resolver for the given target ids, in registration order.
func NewResolver(targetIDs []string) *Resolver {
	known := make(map[string]bool, len(targetIDs))
	for _, id := range targetIDs {
		known[id] = true
	}
	return &Resolver{targets: targetIDs, known: known, log: logger.WithComponent("selection")}
}

// Resolve expands the all-targets node, drops duplicate and ancestor-redundant
// items and partitions the rest by target id.
func (r *Resolver) Resolve(items []domain.SelectionItem) map[string][]domain.SelectionItem {
	expanded := make([]domain.SelectionItem, 0, len(items))
	for _, item := range items {
		if item.ID == domain.AllTargetsID {
			for _, t := range r.targets {
				expanded = append(expanded, domain.SelectionItem{ID: t, Excluded: item.Excluded})
			}
			continue
		}
		expanded = append(expanded, item)
	}

	result := make(map[string][]domain.SelectionItem)
	seen := make(map[domain.SelectionItem]bool, len(expanded))
	for _, item := range expanded {
		if seen[item] || hasAncestor(expanded, item) {
			continue
		}
		seen[item] = true

		target := domain.TargetOf(item.ID)
		if !r.known[target] {
			r.log.Warn("Ignoring selection of unknown test", "id", item.ID)
			continue
		}
		result[target] = append(result[target], item)
	}
	return result
}

// Plans resolves items and builds one plan per selected target, in
// registration order.
func (r *Resolver) Plans(items []domain.SelectionItem) []Plan {
	resolved := r.Resolve(items)
	var plans []Plan
	for _, t := range r.targets {
		selected, ok := resolved[t]
		if !ok {
			continue
		}
		plan := Plan{TargetID: t, Items: selected, Filter: Filter(t, selected)}
		for _, item := range selected {
			if item.ID == t && item.Excluded {
				plan.Skip = true
			}
		}
		plans = append(plans, plan)
	}
	return plans
}

// Filter renders the items of one target as target-relative test paths,
// excluded items prefixed with '!'. The target root yields no entry, so a
// selection of just the root gives an empty filter, meaning "run everything".
func Filter(targetID string, items []domain.SelectionItem) []string {
	var names []string
	prefix := targetID + "/"
	for _, item := range items {
		name, ok := strings.CutPrefix(item.ID, prefix)
		if !ok || name == "" {
			continue
		}
		if item.Excluded {
			name = "!" + name
		}
		names = append(names, name)
	}
	return names
}

// JoinFilter joins filter entries into a single -t argument value.
func JoinFilter(names []string) string {
	return strings.Join(names, ":")
}

func hasAncestor(items []domain.SelectionItem, item domain.SelectionItem) bool {
	for _, other := range items {
		if other.Excluded == item.Excluded && domain.IsAncestor(other.ID, item.ID) {
			return true
		}
	}
	return false
}
