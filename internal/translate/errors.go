package translate

import (
	"errors"
	"fmt"
)

var ErrMalformedOutput = errors.New("malformed model output")

// TranslationError reports that the model call behind a translation failed.
type TranslationError struct {
	Strategy string
	Err      error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("%s translation failed: %v", e.Strategy, e.Err)
}

func (e *TranslationError) Unwrap() error {
	return e.Err
}
