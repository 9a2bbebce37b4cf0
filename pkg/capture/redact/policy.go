package redact

import (
	"sort"
	"strings"
)

// DefaultSensitiveFields are redacted when no field list is configured.
var DefaultSensitiveFields = []string{
	"authorization",
	"cookie",
	"proxy-authorization",
	"set-cookie",
}

// Policy is the set of header names whose values must never be persisted.
// Lookups are case-insensitive and exact; there are no wildcards. A Policy
// is immutable after construction and safe for concurrent use.
type Policy struct {
	fields map[string]struct{}
}

// NewPolicy creates a policy from a list of header names. Names are
// trimmed and lowercased; empty entries are ignored. A nil or empty list
// yields DefaultSensitiveFields.
func NewPolicy(fields []string) *Policy {
	p := &Policy{fields: make(map[string]struct{}, len(fields))}
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		p.fields[f] = struct{}{}
	}

	if len(p.fields) == 0 {
		for _, f := range DefaultSensitiveFields {
			p.fields[f] = struct{}{}
		}
	}

	return p
}

// ParseFields splits a comma-separated field list such as the one given
// on the command line ("cookie,set-cookie,x-request-1").
func ParseFields(list string) []string {
	var fields []string
	for _, f := range strings.Split(list, ",") {
		f = strings.TrimSpace(strings.Trim(strings.TrimSpace(f), `"`))
		if f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// IsSensitive reports whether the header name is in the policy.
func (p *Policy) IsSensitive(name string) bool {
	if p == nil {
		return false
	}
	if _, ok := p.fields[name]; ok {
		return true
	}
	_, ok := p.fields[strings.ToLower(name)]
	return ok
}

// Fields returns the configured names, lowercased and sorted.
func (p *Policy) Fields() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.fields))
	for f := range p.fields {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of configured names.
func (p *Policy) Len() int {
	if p == nil {
		return 0
	}
	return len(p.fields)
}
