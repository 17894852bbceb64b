package metrics

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/gauntlet-ci/gauntlet/types"
)

func TestErrToLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "nil error",
			err:  nil,
		},
		{
			name: "simple error",
			err:  errors.New("test error"),
		},
		{
			name: "error with special chars",
			err:  errors.New("test@error#123"),
		},
		{
			name: "error with multiple spaces",
			err:  errors.New("test   error"),
		},
		{
			name: "error with multiple underscores",
			err:  errors.New("test__error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := errToLabel(tt.err)
			validLabelRegex := regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)
			if !validLabelRegex.MatchString(result) {
				t.Errorf("errLabel() = %v, is not a valid Prometheus label", result)
			}
		})
	}
}

func TestRecordError(t *testing.T) {
	// just test that it doesn't panic
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("RecordError panic'd")
		}
	}()

	RecordError("test_error")
}

func TestRecordErrorDetails(t *testing.T) {
	// Test with nil error
	RecordErrorDetails("test", nil)

	// Test with actual error
	RecordErrorDetails("test", errors.New("sample error"))
}

func TestRecordOutcome(t *testing.T) {
	RecordOutcome("smoke", "run1", "CaseFoo", types.StatusSuccess)
	RecordOutcome("smoke", "run1", "CaseBar", types.StatusFailure)
	RecordOutcome("smoke", "run1", "CaseBaz", types.StatusCancelled)
	RecordOutcome("smoke", "run1", "CaseQux", types.StatusIgnored)

	// Invalid statuses are dropped rather than recorded
	RecordOutcome("smoke", "run1", "CaseBad", types.Status("bogus"))
}

func TestRecordRun(t *testing.T) {
	RecordRun("smoke", "run1", "success", 2, 2, 0, time.Second)
	RecordRun("smoke", "run1", "failure", 2, 1, 1, time.Second)
}
