package hooks

import (
	"context"
	"strings"
	"testing"
)

func noopExecute(ctx context.Context, hctx Context) (Result, error) {
	return Result{}, nil
}

func TestNewRegistrySortsByPriority(t *testing.T) {
	reg, err := NewRegistry([]Definition{
		{Name: "c", Priority: 30, DefaultCooldownMinutes: 1, Execute: noopExecute},
		{Name: "a", Priority: 10, DefaultCooldownMinutes: 1, Execute: noopExecute},
		{Name: "b", Priority: 20, DefaultCooldownMinutes: 1, Execute: noopExecute},
	})
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, d := range reg.Definitions() {
		got = append(got, d.Name)
	}
	if strings.Join(got, ",") != "a,b,c" {
		t.Fatalf("order = %v, want [a b c]", got)
	}
}

func TestNewRegistryRejectsBadDefinitions(t *testing.T) {
	tests := []struct {
		name string
		defs []Definition
	}{
		{"empty name", []Definition{{Name: "", Execute: noopExecute}}},
		{"duplicate name", []Definition{
			{Name: "x", Execute: noopExecute},
			{Name: "x", Execute: noopExecute},
		}},
		{"nil execute", []Definition{{Name: "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(tt.defs); err == nil {
				t.Error("expected a construction error")
			}
		})
	}
}

func TestRegistryLookup(t *testing.T) {
	reg, err := NewRegistry([]Definition{
		{Name: "mail", Priority: 30, DefaultCooldownMinutes: 60, Execute: noopExecute},
	})
	if err != nil {
		t.Fatal(err)
	}
	if d, ok := reg.Lookup("mail"); !ok || d.DefaultCooldownMinutes != 60 {
		t.Errorf("Lookup(mail) = (%v, %v)", d, ok)
	}
	if _, ok := reg.Lookup("missing"); ok {
		t.Error("Lookup(missing) reported found")
	}
}

func TestBuiltinDefinitionsAreRegistrable(t *testing.T) {
	defs := BuiltinDefinitions(nil, Clients{})
	reg, err := NewRegistry(defs)
	if err != nil {
		t.Fatal(err)
	}
	ordered := reg.Definitions()
	if ordered[0].Name != HookScheduledJobs {
		t.Errorf("first builtin = %q, want user jobs first", ordered[0].Name)
	}
	for _, d := range ordered {
		if d.DefaultCooldownMinutes == 0 {
			t.Errorf("builtin %q ships disabled by default", d.Name)
		}
	}
}
