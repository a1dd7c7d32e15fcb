package exitcode

import (
	"errors"
	"testing"
)

func TestExitCodeConstants(t *testing.T) {
	tests := []struct {
		name string
		got  int
		want int
	}{
		{"Success", Success, 0},
		{"GeneralError", GeneralError, 1},
		{"ConfigError", ConfigError, 2},
		{"Unhealthy", Unhealthy, 3},
		{"TimeoutError", TimeoutError, 7},
		{"RequiredToolMissing", RequiredToolMissing, 9},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %d, expected %d", tt.name, tt.got, tt.want)
		}
	}
}

func TestString(t *testing.T) {
	tests := map[int]string{
		Success:             "Success",
		Unhealthy:           "Environment unhealthy",
		UnsupportedTarget:   "Unsupported platform",
		RequiredToolMissing: "Required tool missing",
		42:                  "Unknown error",
	}
	for code, want := range tests {
		if got := String(code); got != want {
			t.Errorf("String(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestWithCode(t *testing.T) {
	base := errors.New("git could not be installed")
	err := WithCode(RequiredToolMissing, base)

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatal("errors.As should find *ExitError")
	}
	if exitErr.Code != RequiredToolMissing {
		t.Errorf("Code = %d, want %d", exitErr.Code, RequiredToolMissing)
	}
	if !errors.Is(err, base) {
		t.Error("wrapped error should unwrap to the cause")
	}
	if err.Error() != base.Error() {
		t.Errorf("Error() = %q", err.Error())
	}
	if (&ExitError{Code: Unhealthy}).Error() != "Environment unhealthy" {
		t.Error("nil cause should fall back to the code description")
	}
}
