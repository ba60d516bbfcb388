package draft

import "fmt"

// ConfigError reports a missing or malformed draft configuration. It is fatal
// to session creation; no picks are accepted afterwards.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid draft config: %s", e.Reason)
}

// ValidationError reports a human pick arrangement that does not match the
// expected pack size. The session is left unchanged.
type ValidationError struct {
	Want int
	Got  int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("picks must be a sequence of length %d, got %d", e.Want, e.Got)
}

// RangeError reports a pick index outside the current pack's bounds.
type RangeError struct {
	Index   int
	PackLen int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("pick index %d out of range for pack of %d cards", e.Index, e.PackLen)
}
