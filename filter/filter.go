// Package filter selects index records by regular expressions over their
// cached header fields.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dhcgn/mbox-index/model"
)

// Options captures the filtering configuration. Each pattern has the form
// "field:regex", e.g. "subject:^Re:", or a bare regex matched against every
// cached field.
type Options struct {
	Include []string
	Exclude []string
}

type rule struct {
	kind model.FieldKind // zero matches any field
	re   *regexp.Regexp
}

// Filter holds compiled rules.
type Filter struct {
	include []rule
	exclude []rule
}

// New creates a new Filter from the provided options.
func New(opts Options) (*Filter, error) {
	include, err := compileRules(opts.Include)
	if err != nil {
		return nil, fmt.Errorf("compile include pattern: %w", err)
	}
	exclude, err := compileRules(opts.Exclude)
	if err != nil {
		return nil, fmt.Errorf("compile exclude pattern: %w", err)
	}
	if len(include) > 0 && len(exclude) > 0 {
		return nil, fmt.Errorf("include and exclude filters are mutually exclusive")
	}
	return &Filter{include: include, exclude: exclude}, nil
}

// Active reports whether any rule is configured.
func (f *Filter) Active() bool {
	return len(f.include) > 0 || len(f.exclude) > 0
}

// Allows reports whether a record with the given cached fields passes.
func (f *Filter) Allows(fields map[model.FieldKind][]byte) bool {
	if len(f.include) > 0 {
		return matchAny(f.include, fields)
	}
	return !matchAny(f.exclude, fields)
}

func compileRules(patterns []string) ([]rule, error) {
	rules := make([]rule, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		var r rule
		if name, expr, ok := strings.Cut(pattern, ":"); ok {
			if kind, known := model.ParseFieldKind(name); known {
				r.kind = kind
				pattern = expr
			}
		}

		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", pattern, err)
		}
		r.re = re
		rules = append(rules, r)
	}
	return rules, nil
}

func matchAny(rules []rule, fields map[model.FieldKind][]byte) bool {
	for _, r := range rules {
		if r.kind != 0 {
			if r.re.Match(fields[r.kind]) {
				return true
			}
			continue
		}
		for kind, v := range fields {
			if kind.IsHeader() && r.re.Match(v) {
				return true
			}
		}
	}
	return false
}
