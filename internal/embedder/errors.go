package embedder

import "fmt"

// ConfigError reports an invalid or incomplete configuration. It is
// always raised before any input is processed; callers treat it as fatal
// for the whole run.
type ConfigError struct {
	Layer  string // offending layer name, empty when not layer-specific
	Param  string // offending parameter, empty for structural problems
	Reason string
}

func (e *ConfigError) Error() string {
	switch {
	case e.Layer != "" && e.Param != "":
		return fmt.Sprintf("config: layer %q, parameter %q: %s", e.Layer, e.Param, e.Reason)
	case e.Layer != "":
		return fmt.Sprintf("config: layer %q: %s", e.Layer, e.Reason)
	case e.Param != "":
		return fmt.Sprintf("config: parameter %q: %s", e.Param, e.Reason)
	default:
		return "config: " + e.Reason
	}
}

// ComputeError reports a failure to embed a single input. It is surfaced
// per input and does not abort batch processing of other inputs.
type ComputeError struct {
	Layer string // layer (or embedder type) that failed
	Input string // input identifier or text prefix
	Err   error
}

func (e *ComputeError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("embed: layer %q, input %q: %v", e.Layer, e.Input, e.Err)
	}
	return fmt.Sprintf("embed: layer %q: %v", e.Layer, e.Err)
}

func (e *ComputeError) Unwrap() error { return e.Err }

// InputLabel shortens an input text to a printable identifier for error
// messages.
func InputLabel(text string) string {
	const max = 40
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
