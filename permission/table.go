package permission

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	// ErrTableFrozen is returned when registering after Freeze.
	ErrTableFrozen = errors.New("permission table frozen")
	// ErrEmptyRole is returned for blank role names.
	ErrEmptyRole = errors.New("role name empty")
)

// Table maps roles to the rules they hold.
//
// Registration is guarded by a mutex; after [Table.Freeze] the role map is never written
// again and HasPermission reads it without locking.
type Table struct {
	mu     sync.Mutex
	roles  map[string][]Rule
	frozen atomic.Bool
}

// NewTable creates an empty, unfrozen table.
func NewTable() *Table {
	return &Table{
		roles: make(map[string][]Rule),
	}
}

// FromStrings builds and freezes a table from role → ["action:resource", ...].
func FromStrings(roles map[string][]string) (*Table, error) {
	t := NewTable()
	for role, specs := range roles {
		rules := make([]Rule, 0, len(specs))
		for _, spec := range specs {
			r, err := ParseRule(spec)
			if err != nil {
				return nil, err
			}
			rules = append(rules, r)
		}
		if err := t.Register(role, rules...); err != nil {
			return nil, err
		}
	}
	t.Freeze()
	return t, nil
}

/*
====================================
REGISTER
====================================
*/

// Register appends rules to role, creating the role if needed. A role registered with no
// rules exists but grants nothing.
func (t *Table) Register(role string, rules ...Rule) error {
	role = strings.TrimSpace(role)
	if role == "" {
		return ErrEmptyRole
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen.Load() {
		return ErrTableFrozen
	}

	t.roles[role] = append(t.roles[role], rules...)
	return nil
}

/*
====================================
FREEZE
====================================
*/

// Freeze makes the table read-only.
func (t *Table) Freeze() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frozen.Store(true)
}

// Frozen reports whether Freeze was called.
func (t *Table) Frozen() bool {
	return t.frozen.Load()
}

/*
====================================
CHECK
====================================
*/

// HasPermission reports whether role holds a rule matching both action and resource.
// Unknown roles hold nothing. The table must be frozen; an unfrozen table denies.
func (t *Table) HasPermission(role, action, resource string) bool {
	if t == nil || !t.frozen.Load() {
		return false
	}

	for _, r := range t.roles[role] {
		if r.Allows(action, resource) {
			return true
		}
	}
	return false
}

// Rules returns a copy of the rules held by role.
func (t *Table) Rules(role string) []Rule {
	t.mu.Lock()
	defer t.mu.Unlock()

	rules := t.roles[role]
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Roles returns the registered role names in sorted order.
func (t *Table) Roles() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.roles))
	for role := range t.roles {
		out = append(out, role)
	}
	sort.Strings(out)
	return out
}
