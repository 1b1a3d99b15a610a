package collector

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// Mock collector for testing
type mockCollector struct {
	name    string
	enabled bool
	err     error
	order   *[]string
}

func (m *mockCollector) Collect(ctx context.Context) error {
	if m.order != nil {
		*m.order = append(*m.order, m.name)
	}
	if m.err != nil {
		return m.err
	}
	return ctx.Err()
}

func (m *mockCollector) Name() string {
	return m.name
}

func (m *mockCollector) Enabled() bool {
	return m.enabled
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry returned nil")
	}
	if r.Count() != 0 || r.EnabledCount() != 0 {
		t.Errorf("new registry should be empty, got %d collectors", r.Count())
	}
}

func TestRegistryCounts(t *testing.T) {
	r := NewRegistry()

	r.Register(&mockCollector{name: "daemon", enabled: true})
	r.Register(&mockCollector{name: "hybrid", enabled: false})
	r.Register(&mockCollector{name: "extra", enabled: true})

	if r.Count() != 3 {
		t.Errorf("Count() = %d, want 3", r.Count())
	}
	if r.EnabledCount() != 2 {
		t.Errorf("EnabledCount() = %d, want 2", r.EnabledCount())
	}

	list := r.List()
	if len(list) != 3 || list[0].Name() != "daemon" || list[1].Name() != "hybrid" {
		t.Errorf("List() did not preserve registration order: %v", list)
	}
}

func TestRegistryCollectAll(t *testing.T) {
	tests := []struct {
		name         string
		collectors   []Collector
		expectError  bool
		errorMessage string
	}{
		{
			name:        "empty registry",
			collectors:  []Collector{},
			expectError: false,
		},
		{
			name: "all collectors succeed",
			collectors: []Collector{
				&mockCollector{name: "daemon", enabled: true},
				&mockCollector{name: "hybrid", enabled: true},
			},
			expectError: false,
		},
		{
			name: "one collector fails",
			collectors: []Collector{
				&mockCollector{name: "daemon", enabled: true},
				&mockCollector{name: "hybrid", enabled: true, err: errors.New("kernel unreadable")},
			},
			expectError:  true,
			errorMessage: "hybrid: kernel unreadable",
		},
		{
			name: "disabled collector not executed",
			collectors: []Collector{
				&mockCollector{name: "daemon", enabled: true},
				&mockCollector{name: "hybrid", enabled: false, err: errors.New("should not run")},
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			for _, c := range tt.collectors {
				r.Register(c)
			}

			err := r.CollectAll(context.Background())

			if tt.expectError && err == nil {
				t.Error("Expected error but got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if tt.expectError && err != nil && !strings.Contains(err.Error(), tt.errorMessage) {
				t.Errorf("Error message %q does not contain %q", err.Error(), tt.errorMessage)
			}
		})
	}
}

func TestRegistryCollectAll_ContinuesAfterFailure(t *testing.T) {
	var order []string
	errFirst := errors.New("first")
	errLast := errors.New("last")

	r := NewRegistry()
	r.Register(&mockCollector{name: "a", enabled: true, err: errFirst, order: &order})
	r.Register(&mockCollector{name: "b", enabled: true, order: &order})
	r.Register(&mockCollector{name: "c", enabled: true, err: errLast, order: &order})

	err := r.CollectAll(context.Background())

	if strings.Join(order, ",") != "a,b,c" {
		t.Errorf("collectors ran in order %v, want a,b,c", order)
	}
	if !errors.Is(err, errFirst) || !errors.Is(err, errLast) {
		t.Errorf("joined error %v should wrap both failures", err)
	}
}

func TestRegistryCollectAll_ContextCancellation(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockCollector{name: "daemon", enabled: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.CollectAll(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("CollectAll() = %v, want context.Canceled", err)
	}
}

func BenchmarkRegistryCollectAll(b *testing.B) {
	r := NewRegistry()
	for i := 0; i < 10; i++ {
		r.Register(&mockCollector{name: "bench", enabled: true})
	}

	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.CollectAll(ctx)
	}
}
