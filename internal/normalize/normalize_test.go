package normalize

import "testing"

func TestPushToken(t *testing.T) {
	in := "  ExponentPushToken[xXxX]\n"
	want := "ExponentPushToken[xXxX]"
	if got := PushToken(in); got != want {
		t.Fatalf("PushToken(%q) = %q, want %q", in, got, want)
	}
}

func TestText(t *testing.T) {
	if got := Text("  hi \t"); got != "hi" {
		t.Fatalf("Text = %q, want %q", got, "hi")
	}
}

func TestPage(t *testing.T) {
	tests := []struct {
		page, size          int
		wantSkip, wantLimit int64
	}{
		{0, 0, 0, 20},
		{1, 10, 0, 10},
		{3, 10, 20, 10},
		{2, 500, 100, 100},
		{-4, -1, 0, 20},
	}
	for _, tt := range tests {
		skip, limit := Page(tt.page, tt.size, 20, 100)
		if skip != tt.wantSkip || limit != tt.wantLimit {
			t.Fatalf("Page(%d, %d) = (%d, %d), want (%d, %d)", tt.page, tt.size, skip, limit, tt.wantSkip, tt.wantLimit)
		}
	}
}
