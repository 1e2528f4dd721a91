// Package template renders stored message templates: {{variable}}
// substitution, variable extraction/validation, and per-tenant lookup with
// built-in defaults.
package template

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/notifyhub/tenant-dispatch/internal/compliance"
	"github.com/notifyhub/tenant-dispatch/internal/domain"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Store is the read side of template persistence the engine needs.
type Store interface {
	GetByType(ctx context.Context, tenantID, notificationType string) (*domain.Template, error)
}

// Rendered is the output of Render: the final body plus the segment
// accounting downstream code must never recompute from raw strings.
type Rendered struct {
	Content      string
	Length       int
	SegmentCount int
}

// Engine resolves tenant templates and applies substitution.
type Engine struct {
	store Store

	// defaults by notification type, used when a tenant has not customized
	// a template for that type.
	defaults map[string]string
}

func NewEngine(store Store, defaults map[string]string) *Engine {
	if defaults == nil {
		defaults = BuiltinDefaults()
	}
	return &Engine{store: store, defaults: defaults}
}

// BuiltinDefaults returns the stock template bodies shipped with the system.
func BuiltinDefaults() map[string]string {
	return map[string]string{
		"order_shipped":   "{{name}}, your order has shipped.",
		"order_delivered": "{{name}}, your order was delivered.",
		"reminder":        "Hi {{name}}, this is a reminder: {{subject}}.",
		"generic":         "{{message}}",
	}
}

// Substitute replaces {{name}} tokens with their values. Unresolved tokens
// are left verbatim so a missing variable is visibly wrong in the output
// rather than silently dropped.
func Substitute(content string, variables map[string]string) string {
	return tokenPattern.ReplaceAllStringFunc(content, func(token string) string {
		name := tokenPattern.FindStringSubmatch(token)[1]
		if v, ok := variables[name]; ok {
			return v
		}
		return token
	})
}

// ExtractVariables returns token names in first-occurrence order, deduplicated.
func ExtractVariables(content string) []string {
	seen := map[string]struct{}{}
	var names []string
	for _, m := range tokenPattern.FindAllStringSubmatch(content, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

// Validate checks that every token in content has a provided value.
func Validate(content string, variables map[string]string) (bool, []string) {
	var missing []string
	for _, name := range ExtractVariables(content) {
		if _, ok := variables[name]; !ok {
			missing = append(missing, name)
		}
	}
	return len(missing) == 0, missing
}

// Render looks up the tenant's template for notificationType (falling back
// to a built-in default), validates and substitutes the variables, and
// computes segment accounting in one call.
func (e *Engine) Render(ctx context.Context, tenantID, notificationType string, variables map[string]string) (*Rendered, error) {
	content, err := e.resolve(ctx, tenantID, notificationType)
	if err != nil {
		return nil, err
	}

	if ok, missing := Validate(content, variables); !ok {
		return nil, fmt.Errorf("%w: %v", domain.ErrMissingVariables, missing)
	}

	body := Substitute(content, variables)
	info := compliance.ComputeSegments(body)
	return &Rendered{
		Content:      body,
		Length:       info.Length,
		SegmentCount: info.SegmentCount,
	}, nil
}

func (e *Engine) resolve(ctx context.Context, tenantID, notificationType string) (string, error) {
	if e.store != nil {
		t, err := e.store.GetByType(ctx, tenantID, notificationType)
		if err == nil {
			return t.Content, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("resolve template: %w", err)
		}
	}
	if content, ok := e.defaults[notificationType]; ok {
		return content, nil
	}
	return "", domain.ErrNotFound
}
