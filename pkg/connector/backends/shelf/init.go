package shelf

import (
	"github.com/evhart/preserve/pkg/connector/registry"
)

func init() {
	registry.MustRegister(&registry.Descriptor{
		Name:        Scheme,
		Description: "Local file-backed persistent mapping (bbolt)",
		Factory:     New,
		Params: map[string]registry.Param{
			ParamPath: {
				Type:        "string",
				Description: "Path to the shelf database file",
			},
			"host": {
				Type:        "string",
				Description: "Leading path segment when resolved from a URI",
			},
			ParamBucket: {
				Type:        "string",
				Default:     defaultBucket,
				Description: "Bucket holding the records",
			},
		},
	})
}
