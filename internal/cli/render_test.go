package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/normfold/pkg/cache"
	"github.com/matzehuels/normfold/pkg/model"
	"github.com/matzehuels/normfold/pkg/render/nodelink"
)

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		name   string
		format string
		output string
		want   string
	}{
		{"explicit wins", "png", "out.svg", "png"},
		{"from extension", "", "out.dot", "dot"},
		{"pdf extension", "", "diagram.pdf", "pdf"},
		{"unknown extension", "", "out.txt", "svg"},
		{"no output", "", "", "svg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveFormat(tt.format, tt.output); got != tt.want {
				t.Errorf("resolveFormat(%q, %q) = %q, want %q", tt.format, tt.output, got, tt.want)
			}
		})
	}
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"svg", false},
		{"dot", false},
		{"pdf", false},
		{"png", false},
		{"json", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			err := validateFormat(tt.format)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
			}
		})
	}
}

func TestParseList(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"x", []string{"x"}},
		{"x,y", []string{"x", "y"}},
		{" x , ,y ", []string{"x", "y"}},
	}

	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, parseList(tt.input)); diff != "" {
			t.Errorf("parseList(%q) mismatch (-want +got):\n%s", tt.input, diff)
		}
	}
}

func TestBasePath(t *testing.T) {
	if got := basePath("models/sum.toml"); got != "models/sum" {
		t.Errorf("basePath() = %q, want %q", got, "models/sum")
	}
}

func TestRenderCached(t *testing.T) {
	b := model.NewBuilder()
	x := b.Var("x", 1, 0, 2)
	b.Uniform("flat", x)
	g, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	store, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	opts := &renderOpts{format: nodelink.FormatSVG}

	first, err := renderCached(ctx, store, g, opts)
	if err != nil {
		t.Fatalf("renderCached: %v", err)
	}
	key := cache.ArtifactKey(nodelink.FormatSVG, nodelink.ToDOT(g, nodelink.Options{}))
	cached, hit, err := store.Get(ctx, key)
	if err != nil || !hit {
		t.Fatalf("rendered SVG not cached: hit %v, err %v", hit, err)
	}
	if !bytes.Equal(first, cached) {
		t.Error("cached bytes differ from rendered bytes")
	}

	// A planted entry proves the second render is served from the cache.
	if err := store.Set(ctx, key, []byte("<svg>cached</svg>"), 0); err != nil {
		t.Fatal(err)
	}
	second, err := renderCached(ctx, store, g, opts)
	if err != nil {
		t.Fatal(err)
	}
	if string(second) != "<svg>cached</svg>" {
		t.Errorf("second render = %.40q, want the cached entry", second)
	}
}
