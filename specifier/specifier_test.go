package specifier_test

import (
	"testing"

	"github.com/modresolve/resolver/specifier"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name             string
		raw              string
		path, query, fragment string
		family           specifier.Family
	}{
		{"bare", "lodash", "lodash", "", "", specifier.FamilyBare},
		{"bare-subpath", "lodash/merge", "lodash/merge", "", "", specifier.FamilyBare},
		{"scoped", "@scope/pkg", "@scope/pkg", "", "", specifier.FamilyBare},
		{"relative", "./a.js", "./a.js", "", "", specifier.FamilyRelative},
		{"parent-relative", "../a.js", "../a.js", "", "", specifier.FamilyRelative},
		{"absolute", "/a/b.js", "/a/b.js", "", "", specifier.FamilyAbsolute},
		{"windows-absolute", "C:/a/b.js", "C:/a/b.js", "", "", specifier.FamilyAbsolute},
		{"hash-import", "#internal/util", "#internal/util", "", "", specifier.FamilyHash},
		{"query", "./a.js?raw", "./a.js", "?raw", "", specifier.FamilyRelative},
		{"fragment", "./a.js#frag", "./a.js", "", "#frag", specifier.FamilyRelative},
		{"query-and-fragment", "./a.js?raw#frag", "./a.js", "?raw", "#frag", specifier.FamilyRelative},
		{"escaped-hash", "./a\x00#b.js", "./a#b.js", "", "", specifier.FamilyRelative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := specifier.Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.raw, err)
			}
			if got.Path != tt.path || got.Query != tt.query || got.Fragment != tt.fragment {
				t.Errorf("Parse(%q) = %+v, want path=%q query=%q fragment=%q",
					tt.raw, got, tt.path, tt.query, tt.fragment)
			}
			if got.Family != tt.family {
				t.Errorf("Parse(%q).Family = %v, want %v", tt.raw, got.Family, tt.family)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := specifier.Parse(""); err != specifier.ErrEmpty {
		t.Fatalf("Parse(\"\") error = %v, want %v", err, specifier.ErrEmpty)
	}
}

func TestFullPath(t *testing.T) {
	s, err := specifier.Parse("./a.js?raw#frag")
	if err != nil {
		t.Fatal(err)
	}
	if got := s.FullPath(); got != "./a.js?raw#frag" {
		t.Errorf("FullPath() = %q, want %q", got, "./a.js?raw#frag")
	}
}

func TestWithoutFragment(t *testing.T) {
	s, err := specifier.Parse("./weird#file.js")
	if err != nil {
		t.Fatal(err)
	}
	if s.Fragment != "#file.js" {
		t.Fatalf("expected fragment #file.js, got %q", s.Fragment)
	}
	literal := s.WithoutFragment()
	if literal.Fragment != "" {
		t.Errorf("WithoutFragment() left fragment %q", literal.Fragment)
	}
	if literal.Path != "./weird#file.js" {
		t.Errorf("WithoutFragment().Path = %q, want %q", literal.Path, "./weird#file.js")
	}
}
