package memory

import (
	"github.com/evhart/preserve/pkg/connector/registry"
)

func init() {
	registry.MustRegister(&registry.Descriptor{
		Name:        Scheme,
		Description: "In-memory key-value store, lost when the process exits",
		Factory:     New,
		Params:      map[string]registry.Param{},
	})
}
