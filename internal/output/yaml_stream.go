package output

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/temirov/mtc/internal/services/stream"
)

const yamlIndent = 2

type yamlStreamRenderer struct {
	stdout  io.Writer
	builder documentBuilder
}

// NewYAMLStreamRenderer collects the batch and writes one YAML Document on Flush.
// Descriptions are multi-line, so they come out as literal block scalars.
func NewYAMLStreamRenderer(stdout, stderr io.Writer) StreamRenderer {
	return &yamlStreamRenderer{stdout: stdout, builder: newDocumentBuilder(stderr)}
}

func (renderer *yamlStreamRenderer) Handle(event stream.Event) error {
	return renderer.builder.add(event)
}

func (renderer *yamlStreamRenderer) Flush() error {
	if renderer.stdout == nil {
		return nil
	}
	encoder := yaml.NewEncoder(renderer.stdout)
	encoder.SetIndent(yamlIndent)
	if err := encoder.Encode(renderer.builder.document); err != nil {
		return err
	}
	return encoder.Close()
}
