// Package filter decides which entities appear in a report.
//
// A Filter is immutable after construction and safe for lock-free use from
// every collector worker concurrently.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/justapithecus/assay/types"
)

// internalSuffix marks engine-internal bookkeeping objects. Always
// excluded regardless of configuration.
const internalSuffix = "--ObjectTableIds"

// internalMarker is the namespace substring of engine-internal model
// entities, excluded when the ignore-internal flag is set.
const internalMarker = "com.tibco.cep.runtime.model"

// Filter applies static exclusion rules followed by per-category inclusion
// patterns. An absent or empty pattern set for a category means every
// entity not statically excluded is included.
type Filter struct {
	ignoreInternal bool
	includes       map[types.Category][]*regexp.Regexp
}

// New compiles the per-category inclusion patterns. Patterns use full-match
// semantics: a name is included only when a pattern matches it entirely.
func New(ignoreInternal bool, includes map[types.Category][]string) (*Filter, error) {
	compiled := make(map[types.Category][]*regexp.Regexp, len(includes))
	for category, patterns := range includes {
		for _, pattern := range patterns {
			if pattern == "" {
				continue
			}
			re, err := regexp.Compile(`\A(?:` + pattern + `)\z`)
			if err != nil {
				return nil, fmt.Errorf("category %s: invalid include pattern %q: %w", category, pattern, err)
			}
			compiled[category] = append(compiled[category], re)
		}
	}
	return &Filter{
		ignoreInternal: ignoreInternal,
		includes:       compiled,
	}, nil
}

// IsIncluded reports whether the named entity's sample belongs in the
// report for the given category. Decision order, first match wins:
// static suffix exclusion, internal-namespace exclusion, then the
// category's inclusion patterns.
func (f *Filter) IsIncluded(name string, category types.Category) bool {
	if strings.HasSuffix(name, internalSuffix) {
		return false
	}
	if f.ignoreInternal && strings.Contains(name, internalMarker) {
		return false
	}

	patterns := f.includes[category]
	if len(patterns) == 0 {
		return true
	}
	for _, re := range patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
