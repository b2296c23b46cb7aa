package report

import (
	"encoding/json"
	"io"
)

// WriteJSON writes v as indented JSON. It accepts any of the report
// payloads: a run result, a grid search summary, or a walk-forward result.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
