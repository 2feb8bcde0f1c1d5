package sqlite

import (
	"github.com/evhart/preserve/pkg/connector/registry"
)

func init() {
	registry.MustRegister(&registry.Descriptor{
		Name:        Scheme,
		Description: "SQLite-backed key-value store (pure-Go driver)",
		Factory:     New,
		Params: map[string]registry.Param{
			ParamPath: {
				Type:        "string",
				Description: "Path to the database file, or :memory:",
			},
			"host": {
				Type:        "string",
				Description: "Leading path segment when resolved from a URI",
			},
		},
	})
}
