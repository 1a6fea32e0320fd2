package permission

import (
	"errors"
	"fmt"
	"strings"
)

// Wildcard is the token that matches any action or resource.
const Wildcard = "*"

// ErrInvalidRule is returned for malformed rule strings.
var ErrInvalidRule = errors.New("invalid permission rule")

// Matcher matches one side of a rule. The zero value matches nothing.
type Matcher struct {
	value    string
	wildcard bool
}

// Literal returns a matcher for exactly value.
func Literal(value string) Matcher {
	return Matcher{value: value}
}

// Any returns the wildcard matcher.
func Any() Matcher {
	return Matcher{wildcard: true}
}

// ParseMatcher turns "*" into [Any] and anything else into [Literal].
func ParseMatcher(s string) Matcher {
	s = strings.TrimSpace(s)
	if s == Wildcard {
		return Any()
	}
	return Literal(s)
}

// Match reports whether s is accepted.
func (m Matcher) Match(s string) bool {
	if m.wildcard {
		return true
	}
	return m.value != "" && m.value == s
}

// IsWildcard reports whether m is the wildcard.
func (m Matcher) IsWildcard() bool {
	return m.wildcard
}

func (m Matcher) String() string {
	if m.wildcard {
		return Wildcard
	}
	return m.value
}

// Rule grants Action on Resource.
type Rule struct {
	Action   Matcher
	Resource Matcher
}

// NewRule builds a rule from two tokens, each either a literal or "*".
func NewRule(action, resource string) Rule {
	return Rule{Action: ParseMatcher(action), Resource: ParseMatcher(resource)}
}

// ParseRule parses the "action:resource" form used in configuration.
func ParseRule(s string) (Rule, error) {
	action, resource, ok := strings.Cut(strings.TrimSpace(s), ":")
	action = strings.TrimSpace(action)
	resource = strings.TrimSpace(resource)
	if !ok || action == "" || resource == "" {
		return Rule{}, fmt.Errorf("%w: %q", ErrInvalidRule, s)
	}
	return NewRule(action, resource), nil
}

// Allows reports whether the rule grants action on resource.
func (r Rule) Allows(action, resource string) bool {
	return r.Action.Match(action) && r.Resource.Match(resource)
}

func (r Rule) String() string {
	return r.Action.String() + ":" + r.Resource.String()
}
