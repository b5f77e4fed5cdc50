// Package docs carries the OpenAPI description of the KarmaKanban API.
package docs

import (
	_ "embed"

	"github.com/ghodss/yaml"
	"github.com/swaggo/swag"
)

//go:embed swagger.yaml
var SwaggerYAML []byte

type document struct {
	json string
}

func (d document) ReadDoc() string { return d.json }

// JSON returns the document converted from YAML.
func JSON() ([]byte, error) {
	return yaml.YAMLToJSON(SwaggerYAML)
}

func init() {
	data, err := JSON()
	if err != nil {
		return
	}
	swag.Register(swag.Name, document{json: string(data)})
}
