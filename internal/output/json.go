package output

import (
	"encoding/json"
	"io"

	"github.com/dshills/scribe/internal/workflow"
)

// JSONWriter emits the outcome as indented JSON. HTML is not escaped since
// suggestion text routinely holds markup.
type JSONWriter struct{}

func (j *JSONWriter) Write(w io.Writer, outcome *workflow.Outcome) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(outcome)
}
