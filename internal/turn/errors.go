package turn

import (
	"context"
	"errors"
	"fmt"

	"github.com/Upendra2003/Aira-Backend/internal/llm"
	"github.com/Upendra2003/Aira-Backend/internal/reliability"
)

// ErrEmptyMessage rejects turns whose message is blank after trimming.
var ErrEmptyMessage = errors.New("message must not be empty")

// Stage names the pipeline phase where a turn failed.
type Stage string

const (
	StageValidate Stage = "validate"
	StageGenerate Stage = "generate"
	StagePersist  Stage = "persist"
)

// TurnError wraps a pipeline failure with its stage and whether retrying the
// same message may succeed. Generation and persistence failures never leave a
// partial turn pair behind, so retrying is always safe when Retryable is set.
type TurnError struct {
	Stage     Stage
	Retryable bool
	Err       error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("turn %s failed: %v", e.Stage, e.Err)
}

func (e *TurnError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a turn failure worth retrying.
func IsRetryable(err error) bool {
	var te *TurnError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return false
}

// generationRetryable classifies a generator failure: timeouts and transient
// upstream statuses are retryable, malformed requests are not.
func generationRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *llm.StatusError
	if errors.As(err, &se) {
		return reliability.IsRetryableHTTPStatus(se.Code)
	}
	// Network-level failures (connection refused, reset) are transient.
	return !errors.Is(err, context.Canceled)
}
