package template_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/notifyhub/tenant-dispatch/internal/domain"
	"github.com/notifyhub/tenant-dispatch/internal/repository"
	"github.com/notifyhub/tenant-dispatch/internal/template"
)

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		variables map[string]string
		want      string
	}{
		{
			"simple substitution",
			"{{name}}, order shipped",
			map[string]string{"name": "Ada"},
			"Ada, order shipped",
		},
		{
			"repeated token",
			"{{name}} {{name}}",
			map[string]string{"name": "Ada"},
			"Ada Ada",
		},
		{
			"unresolved token left verbatim",
			"{{name}}, code {{code}}",
			map[string]string{"name": "Ada"},
			"Ada, code {{code}}",
		},
		{
			"whitespace inside braces",
			"{{ name }} ok",
			map[string]string{"name": "Ada"},
			"Ada ok",
		},
		{
			"no tokens",
			"plain text",
			map[string]string{"name": "Ada"},
			"plain text",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := template.Substitute(tc.content, tc.variables); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractVariables(t *testing.T) {
	got := template.ExtractVariables("{{b}} then {{a}} then {{b}} and {{c}}")
	want := []string{"b", "a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	if vars := template.ExtractVariables("no tokens"); vars != nil {
		t.Fatalf("expected nil, got %v", vars)
	}
}

func TestValidate(t *testing.T) {
	ok, missing := template.Validate("{{a}} {{b}}", map[string]string{"a": "1"})
	if ok {
		t.Fatal("expected invalid")
	}
	if !reflect.DeepEqual(missing, []string{"b"}) {
		t.Fatalf("missing = %v", missing)
	}

	ok, missing = template.Validate("{{a}}", map[string]string{"a": "1", "extra": "x"})
	if !ok || missing != nil {
		t.Fatalf("expected valid, got missing=%v", missing)
	}
}

func TestRender_TenantTemplate(t *testing.T) {
	store := repository.NewMockTemplateRepository()
	store.Put(&domain.Template{
		TenantID:         "t1",
		NotificationType: "order_shipped",
		Content:          "{{name}}, your package is on the way!",
	})
	engine := template.NewEngine(store, nil)

	r, err := engine.Render(context.Background(), "t1", "order_shipped", map[string]string{"name": "Ada"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Content != "Ada, your package is on the way!" {
		t.Fatalf("content = %q", r.Content)
	}
	if r.SegmentCount != 1 {
		t.Fatalf("segments = %d", r.SegmentCount)
	}
	if r.Length == 0 {
		t.Fatal("expected non-zero length")
	}
}

func TestRender_FallsBackToDefault(t *testing.T) {
	engine := template.NewEngine(repository.NewMockTemplateRepository(), map[string]string{
		"welcome": "Welcome, {{name}}",
	})

	r, err := engine.Render(context.Background(), "t1", "welcome", map[string]string{"name": "Ada"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Content != "Welcome, Ada" {
		t.Fatalf("content = %q", r.Content)
	}
}

func TestRender_MissingVariables(t *testing.T) {
	engine := template.NewEngine(repository.NewMockTemplateRepository(), map[string]string{
		"welcome": "Welcome, {{name}}",
	})

	_, err := engine.Render(context.Background(), "t1", "welcome", nil)
	if !errors.Is(err, domain.ErrMissingVariables) {
		t.Fatalf("expected ErrMissingVariables, got %v", err)
	}
}

func TestRender_UnknownType(t *testing.T) {
	engine := template.NewEngine(repository.NewMockTemplateRepository(), map[string]string{})

	_, err := engine.Render(context.Background(), "t1", "nope", nil)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
