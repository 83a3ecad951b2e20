package apperr

import (
	"fmt"
	"testing"
)

func TestCodeOfWrapped(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"plain", NewNotFoundError("nft not found"), ErrorNotFound},
		{"wrapped", fmt.Errorf("submit: %w", NewCapacityReachedError("full")), ErrorCapacityReached},
		{"foreign", fmt.Errorf("boom"), ""},
		{"nil", nil, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CodeOf(tc.err); got != tc.want {
				t.Fatalf("CodeOf = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := NewInsufficientBalanceError("balance 10 below 50")
	if err.Error() != "balance 10 below 50" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	ae, ok := AsError(err)
	if !ok || ae.Code != ErrorInsufficientBalance {
		t.Fatalf("AsError = %+v, %v", ae, ok)
	}
}
