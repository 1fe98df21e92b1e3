package cli

import (
	"context"
	"fmt"
	"testing"

	"github.com/matzehuels/normfold/pkg/errors"
	"github.com/matzehuels/normfold/pkg/graph"
	"github.com/matzehuels/normfold/pkg/model"
	"github.com/matzehuels/normfold/pkg/unfold"
)

func TestPropagationError(t *testing.T) {
	m, err := model.Load(context.Background(), writeModel(t, conflictModel))
	if err != nil {
		t.Fatal(err)
	}
	_, conflict := unfold.Propagate(m.Graph, m.Top, m.Norm)
	if conflict == nil {
		t.Fatal("expected a conflict")
	}
	_, unknown := unfold.Propagate(m.Graph, graph.NodeID(m.Graph.Len()), m.Norm)
	if unknown == nil {
		t.Fatal("expected an error for an unknown root")
	}

	tests := []struct {
		name string
		err  error
		code errors.Code
	}{
		{"conflict", conflict, errors.ErrCodeConflictingNormalization},
		{"wrapped conflict", fmt.Errorf("check: %w", conflict), errors.ErrCodeConflictingNormalization},
		{"unknown root", unknown, errors.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.GetCode(propagationError("model.toml", tt.err)); got != tt.code {
				t.Errorf("code = %s, want %s", got, tt.code)
			}
		})
	}
}
