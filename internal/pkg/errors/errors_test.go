package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"transient", Transient("throttled", nil), ClassTransient},
		{"backup", Backup("snapshot failed", errors.New("io")), ClassBackup},
		{"rejected", DeletionRejected("denied", nil), ClassDeletionRejected},
		{"structural", Structural("no catalog", nil), ClassStructural},
		{"wrapped", fmt.Errorf("context: %w", Structural("no catalog", nil)), ClassStructural},
		{"plain", errors.New("plain"), Class("")},
		{"nil", nil, Class("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassOf(tt.err); got != tt.want {
				t.Errorf("ClassOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsStructural(t *testing.T) {
	if !IsStructural(Structural("fatal", nil)) {
		t.Error("structural error not detected")
	}
	if IsStructural(Transient("retry me", nil)) {
		t.Error("transient error classified as structural")
	}
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("root cause")
	err := Backup("snapshot failed", inner)
	if !errors.Is(err, inner) {
		t.Error("wrapped error not reachable via errors.Is")
	}
}
