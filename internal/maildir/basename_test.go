package maildir

import "testing"

func TestParseAndString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		want Basename
	}{
		{"1234.foo", Basename{Unique: "1234.foo"}},
		{"1234.foo:2,S", Basename{Unique: "1234.foo", Flags: "S", hasTag: true}},
		{"1234.foo:2,", Basename{Unique: "1234.foo", Flags: "", hasTag: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.name)
			if got != tt.want {
				t.Fatalf("Parse(%q) = %+v, want %+v", tt.name, got, tt.want)
			}
			if back := got.String(); back != tt.name {
				t.Errorf("String() = %q, want %q", back, tt.name)
			}
		})
	}
}

func TestSameMessage(t *testing.T) {
	t.Parallel()
	if !SameMessage("1234.foo:2,S", "1234.foo:2,RS") {
		t.Error("expected same unique id to report SameMessage")
	}
	if SameMessage("1234.foo", "5678.bar") {
		t.Error("expected different unique ids to report not SameMessage")
	}
}

func TestFlagsOnlyRename(t *testing.T) {
	t.Parallel()
	flags, ok := FlagsOnlyRename("1234.foo:2,S", "1234.foo:2,RS")
	if !ok || flags != "RS" {
		t.Fatalf("FlagsOnlyRename() = (%q, %v), want (\"RS\", true)", flags, ok)
	}
	if _, ok := FlagsOnlyRename("1234.foo:2,S", "5678.bar:2,S"); ok {
		t.Error("expected different unique ids to report flagsOnly=false")
	}
}

func TestWithFlags(t *testing.T) {
	t.Parallel()
	if got := WithFlags("1234.foo:2,S", "RS"); got != "1234.foo:2,RS" {
		t.Errorf("WithFlags() = %q, want 1234.foo:2,RS", got)
	}
	if got := WithFlags("1234.foo", "S"); got != "1234.foo:2,S" {
		t.Errorf("WithFlags() on bare name = %q, want 1234.foo:2,S", got)
	}
}
