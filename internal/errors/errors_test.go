package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestPolyvisError_Error(t *testing.T) {
	tests := []struct {
		name      string
		code      ErrorCode
		message   string
		cause     error
		wantParts []string
	}{
		{
			name:      "with cause",
			code:      EmbedderUnavailable,
			message:   "no provider answered",
			cause:     errors.New("connection refused"),
			wantParts: []string{"EMBEDDER_UNAVAILABLE", "no provider answered", "connection refused"},
		},
		{
			name:      "without cause",
			code:      ConfigNotFound,
			message:   "no settings file found",
			cause:     nil,
			wantParts: []string{"CONFIG_NOT_FOUND", "no settings file found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err *PolyvisError
			if tt.cause != nil {
				err = Wrap(tt.code, tt.message, tt.cause)
			} else {
				err = New(tt.code, tt.message)
			}
			got := err.Error()

			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, want to contain %q", got, part)
				}
			}
		})
	}
}

func TestPolyvisError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(InternalError, "something went wrong", cause)

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is should find the wrapped cause")
	}
	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}

	errNoCause := New(ParseFailed, "bad markdown")
	if errNoCause.Unwrap() != nil {
		t.Error("Unwrap() on error without cause should return nil")
	}
}

func TestPolyvisError_WithDetails(t *testing.T) {
	err := New(ValidationFailed, "checks failed").WithDetails(map[string]int{"orphan_edges": 3})

	details, ok := err.Details.(map[string]int)
	if !ok {
		t.Fatalf("Details = %T, want map[string]int", err.Details)
	}
	if details["orphan_edges"] != 3 {
		t.Errorf("Details[orphan_edges] = %d, want 3", details["orphan_edges"])
	}
}

func TestSuggestedFixesAttached(t *testing.T) {
	err := New(EmbedderUnavailable, "daemon and provider both down")
	if len(err.SuggestedFixes) == 0 {
		t.Fatal("EMBEDDER_UNAVAILABLE should carry suggested fixes")
	}
	if !strings.Contains(err.SuggestedFixes[0].Command, "daemon start") {
		t.Errorf("first fix = %q, want daemon start hint", err.SuggestedFixes[0].Command)
	}

	if fixes := GetSuggestedFixes(ParseFailed); fixes != nil {
		t.Errorf("PARSE_FAILED has no canned fixes, got %v", fixes)
	}
}
