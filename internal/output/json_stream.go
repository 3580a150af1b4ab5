package output

import (
	"encoding/json"
	"io"

	"github.com/temirov/mtc/internal/services/stream"
)

const jsonIndent = "  "

type jsonStreamRenderer struct {
	stdout  io.Writer
	builder documentBuilder
}

// NewJSONStreamRenderer collects the batch and writes one JSON Document on Flush.
func NewJSONStreamRenderer(stdout, stderr io.Writer) StreamRenderer {
	return &jsonStreamRenderer{stdout: stdout, builder: newDocumentBuilder(stderr)}
}

func (renderer *jsonStreamRenderer) Handle(event stream.Event) error {
	return renderer.builder.add(event)
}

func (renderer *jsonStreamRenderer) Flush() error {
	if renderer.stdout == nil {
		return nil
	}
	encoder := json.NewEncoder(renderer.stdout)
	encoder.SetIndent("", jsonIndent)
	encoder.SetEscapeHTML(false)
	return encoder.Encode(renderer.builder.document)
}
