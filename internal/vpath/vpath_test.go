package vpath

import "testing"

func TestClassify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		virtual string
		want    Class
	}{
		{"root", "/", ClassRoot},
		{"query root", "/work", ClassQueryRoot},
		{"reserved at root", "/_reverse", ClassReserved},
		{"cur", "/work/cur", ClassCurOrNew},
		{"new", "/work/new", ClassCurOrNew},
		{"reserved second segment", "/work/_reverse", ClassReserved},
		{"non maildir second segment", "/work/junk", ClassReserved},
		{"entry", "/work/cur/1234.foo:2,S", ClassEntry},
		{"refresh trigger", "/work/cur/.refresh", ClassRefreshTrigger},
		{"reserved query with entry", "/_reverse/cur/x", ClassReserved},
		{"too deep", "/work/cur/x/y", ClassReserved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.virtual); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.virtual, got, tt.want)
			}
		})
	}
}

func TestMustValidPanics(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for over-long path")
		}
	}()
	long := make([]byte, MaxPathLen+1)
	for i := range long {
		long[i] = 'a'
	}
	MustValid(string(long))
}

func TestEncodeDecodeQuery(t *testing.T) {
	t.Parallel()
	tests := []struct {
		query   string
		encoded string
	}{
		{"from:bob", "from:bob"},
		{"maildir:/archive/2020", "maildir:+archive+2020"},
	}
	for _, tt := range tests {
		if got := EncodeQuery(tt.query); got != tt.encoded {
			t.Errorf("EncodeQuery(%q) = %q, want %q", tt.query, got, tt.encoded)
		}
		if got := DecodeQuery(tt.encoded); got != tt.query {
			t.Errorf("DecodeQuery(%q) = %q, want %q", tt.encoded, got, tt.query)
		}
	}
}

func TestToBacking(t *testing.T) {
	t.Parallel()
	tests := []struct {
		virtual string
		want    string
	}{
		{"/", "/backing"},
		{"/work", "/backing/_work"},
		{"/work/cur", "/backing/_work/cur"},
		{"/work/cur/1234.foo", "/backing/_work/cur/1234.foo"},
	}
	for _, tt := range tests {
		if got := ToBacking("/backing", tt.virtual); got != tt.want {
			t.Errorf("ToBacking(%q) = %q, want %q", tt.virtual, got, tt.want)
		}
	}
}

func TestGrandparentQuery(t *testing.T) {
	t.Parallel()
	query, ok := GrandparentQuery("/work/cur/1234.foo")
	if !ok || query != "work" {
		t.Errorf("GrandparentQuery() = (%q, %v), want (\"work\", true)", query, ok)
	}
	if _, ok := GrandparentQuery("/work"); ok {
		t.Error("GrandparentQuery(\"/work\") should report ok=false")
	}
}

func TestMaildirParent(t *testing.T) {
	t.Parallel()
	if got := MaildirParent("/work/cur/1234.foo"); got != "cur" {
		t.Errorf("MaildirParent() = %q, want cur", got)
	}
	if got := MaildirParent("/work"); got != "" {
		t.Errorf("MaildirParent(%q) = %q, want empty", "/work", got)
	}
}
