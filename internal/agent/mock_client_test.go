package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMockClientFillsHeaders(t *testing.T) {
	m := NewMockClient()
	prompt := strings.Join([]string{
		"Step: testing",
		`Test type: cover`,
		`Option A: Storm "blue"`,
		`Option B: Harbour at dawn`,
	}, "\n")

	got, err := m.Ask(context.Background(), prompt, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"test_type": "cover"`, `"option_a": "Storm \"blue\""`, `"option_b": "Harbour at dawn"`} {
		if !strings.Contains(got, want) {
			t.Errorf("response missing %s", want)
		}
	}
}

func TestMockClientFailOn(t *testing.T) {
	m := NewMockClient()
	boom := &TransportError{Provider: "mock", Kind: KindNetwork, Message: "connection reset"}
	m.FailOn("Artifact: Concept B", boom)

	if _, err := m.Ask(context.Background(), "Step: covers\nArtifact: Concept A", 0); err != nil {
		t.Errorf("Concept A error = %v", err)
	}
	if _, err := m.Ask(context.Background(), "Step: covers\nArtifact: Concept B", 0); !errors.Is(err, ErrNetwork) {
		t.Errorf("Concept B error = %v, want ErrNetwork", err)
	}
	if diff := cmp.Diff([]string{"covers", "covers"}, m.Calls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestMockClientUnknownStep(t *testing.T) {
	got, err := NewMockClient().Ask(context.Background(), "no header", 0)
	if err != nil || got != `{"message": "Mock response"}` {
		t.Errorf("Ask() = %q, %v", got, err)
	}
}

func TestMockClientCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockClient().Ask(ctx, "Step: titles", 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Ask() error = %v, want context.Canceled", err)
	}
}
