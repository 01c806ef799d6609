package filtering

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/stacklok/catalog-watcher/internal/catalog"
)

// Rules lists the include and exclude entries of the filter
type Rules struct {
	IncludeTitles []string
	ExcludeTitles []string
	IncludeTypes  []string
	ExcludeTypes  []string
}

// Empty reports whether no rule is set
func (r Rules) Empty() bool {
	return len(r.IncludeTitles) == 0 && len(r.ExcludeTitles) == 0 &&
		len(r.IncludeTypes) == 0 && len(r.ExcludeTypes) == 0
}

type pattern struct {
	source string
	glob   glob.Glob
}

// Filter decides which catalog items take part in a sync cycle.
// A nil *Filter includes everything.
type Filter struct {
	includeTitles []pattern
	excludeTitles []pattern
	includeTypes  map[string]struct{}
	excludeTypes  map[string]struct{}
}

// New compiles the rules. It returns nil when no rule is set.
func New(rules Rules) (*Filter, error) {
	if rules.Empty() {
		return nil, nil
	}

	f := &Filter{
		includeTypes: typeSet(rules.IncludeTypes),
		excludeTypes: typeSet(rules.ExcludeTypes),
	}

	var err error
	if f.includeTitles, err = compile(rules.IncludeTitles); err != nil {
		return nil, fmt.Errorf("invalid include title pattern: %w", err)
	}
	if f.excludeTitles, err = compile(rules.ExcludeTitles); err != nil {
		return nil, fmt.Errorf("invalid exclude title pattern: %w", err)
	}
	return f, nil
}

func compile(sources []string) ([]pattern, error) {
	out := make([]pattern, 0, len(sources))
	for _, src := range sources {
		// No separators, so '*' also matches across '/' and spaces
		g, err := glob.Compile(strings.ToLower(src))
		if err != nil {
			return nil, fmt.Errorf("%q: %w", src, err)
		}
		out = append(out, pattern{source: src, glob: g})
	}
	return out, nil
}

func typeSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	return set
}

// ShouldInclude reports whether the item passes the filter, with the reason
func (f *Filter) ShouldInclude(item catalog.Item) (bool, string) {
	if f == nil {
		return true, "no filters specified"
	}

	if ok, reason := f.matchType(item.Type); !ok {
		return false, reason
	}
	return f.matchTitles(titles(item))
}

func (f *Filter) matchType(itemType string) (bool, string) {
	key := strings.ToLower(itemType)
	if _, found := f.excludeTypes[key]; found {
		return false, fmt.Sprintf("type %q is excluded", itemType)
	}
	if len(f.includeTypes) > 0 {
		if _, found := f.includeTypes[key]; !found {
			return false, fmt.Sprintf("type %q is not included", itemType)
		}
	}
	return true, ""
}

func (f *Filter) matchTitles(names []string) (bool, string) {
	for _, p := range f.excludeTitles {
		for _, name := range names {
			if p.glob.Match(name) {
				return false, fmt.Sprintf("excluded by pattern '%s'", p.source)
			}
		}
	}

	if len(f.includeTitles) == 0 {
		return true, "no title pattern excludes it"
	}
	for _, p := range f.includeTitles {
		for _, name := range names {
			if p.glob.Match(name) {
				return true, fmt.Sprintf("included by pattern '%s'", p.source)
			}
		}
	}
	return false, "no match found in include patterns"
}

// titles returns the lower-cased title variants of the item
func titles(item catalog.Item) []string {
	out := make([]string, 0, 3+len(item.Titles))
	for _, t := range []string{item.Title, item.TitleEnglish, item.TitleJapanese} {
		if t != "" {
			out = append(out, strings.ToLower(t))
		}
	}
	for _, t := range item.Titles {
		if t.Title != "" {
			out = append(out, strings.ToLower(t.Title))
		}
	}
	return out
}

// Apply returns the items that pass the filter, in their original order,
// and the number dropped
func (f *Filter) Apply(items []catalog.Item) ([]catalog.Item, int) {
	if f == nil {
		return items, 0
	}

	kept := make([]catalog.Item, 0, len(items))
	for _, item := range items {
		if ok, _ := f.ShouldInclude(item); ok {
			kept = append(kept, item)
		}
	}
	return kept, len(items) - len(kept)
}
