package version

import "testing"

func TestString(t *testing.T) {
	Version, GitSHA, BuildTime = "1.2.0", "abc123", "2026-01-01T00:00:00Z"
	t.Cleanup(func() { Version, GitSHA, BuildTime = "dev", "unknown", "unknown" })

	want := "biomechd 1.2.0 (abc123, built 2026-01-01T00:00:00Z)"
	if got := String("biomechd"); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
