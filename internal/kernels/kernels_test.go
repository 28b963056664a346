package kernels

import (
	"sort"
	"strings"
	"testing"
)

func TestSourceKnown(t *testing.T) {
	for _, name := range Names() {
		src, err := Source(name)
		if err != nil {
			t.Fatalf("Source(%q): %v", name, err)
		}
		if !strings.Contains(src, "@compute") {
			t.Errorf("kernel %q: missing @compute attribute", name)
		}
		if !strings.Contains(src, "fn main(") {
			t.Errorf("kernel %q: missing main entry point", name)
		}
		if !strings.Contains(src, "@workgroup_size(64)") {
			t.Errorf("kernel %q: unexpected workgroup size", name)
		}
	}
}

func TestSourceUnknown(t *testing.T) {
	if _, err := Source("no_such_kernel"); err == nil {
		t.Fatal("Source with unknown name: expected error")
	}
}

func TestNames(t *testing.T) {
	names := Names()
	if len(names) != 15 {
		t.Fatalf("Names: got %d kernels, want 15", len(names))
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("Names: not sorted: %v", names)
	}
	seen := make(map[string]bool)
	for _, name := range names {
		if seen[name] {
			t.Errorf("Names: duplicate %q", name)
		}
		seen[name] = true
	}
}
