package rate

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultPolicyPath is the mandatory fallback entry of a policy table.
const DefaultPolicyPath = "default"

// Policy is the rate-limit rule for one path.
type Policy struct {
	Limit         int
	Window        time.Duration
	BlockDuration time.Duration
}

// Validate rejects policies that cannot be enforced.
func (p Policy) Validate() error {
	if p.Limit <= 0 {
		return errors.New("limit must be > 0")
	}
	if p.Window <= 0 {
		return errors.New("window must be > 0")
	}
	if p.BlockDuration < 0 {
		return errors.New("block duration must be >= 0")
	}
	return nil
}

// Table resolves request paths to policies. It is immutable after [NewTable].
type Table struct {
	exact    map[string]Policy
	prefixes []string
	def      Policy
}

// NewTable validates policies and builds a lookup table. The "default" entry is
// required. Keys ending in "/" or "*" are treated as prefixes; every other key matches
// exactly and also acts as a prefix for deeper paths.
func NewTable(policies map[string]Policy) (*Table, error) {
	def, ok := policies[DefaultPolicyPath]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q policy", ErrInvalidPolicy, DefaultPolicyPath)
	}

	t := &Table{
		exact: make(map[string]Policy, len(policies)),
		def:   def,
	}
	for path, p := range policies {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPolicy, path, err)
		}
		if path == DefaultPolicyPath {
			continue
		}
		clean := strings.TrimSuffix(strings.TrimSpace(path), "*")
		if clean == "" {
			return nil, fmt.Errorf("%w: empty path", ErrInvalidPolicy)
		}
		t.exact[clean] = p
		t.prefixes = append(t.prefixes, clean)
	}

	sort.Slice(t.prefixes, func(i, j int) bool {
		if len(t.prefixes[i]) != len(t.prefixes[j]) {
			return len(t.prefixes[i]) > len(t.prefixes[j])
		}
		return t.prefixes[i] < t.prefixes[j]
	})

	return t, nil
}

// Lookup returns the policy key and policy for path: exact match first, then the
// longest configured prefix, then the default.
func (t *Table) Lookup(path string) (string, Policy) {
	if p, ok := t.exact[path]; ok {
		return path, p
	}
	for _, prefix := range t.prefixes {
		if prefixMatches(path, prefix) {
			return prefix, t.exact[prefix]
		}
	}
	return DefaultPolicyPath, t.def
}

// Default returns the fallback policy.
func (t *Table) Default() Policy {
	return t.def
}

func prefixMatches(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	if strings.HasSuffix(prefix, "/") || len(path) == len(prefix) {
		return true
	}
	return path[len(prefix)] == '/'
}
