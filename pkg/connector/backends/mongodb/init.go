package mongodb

import (
	"github.com/evhart/preserve/pkg/connector/registry"
)

func init() {
	registry.MustRegister(&registry.Descriptor{
		Name:        Scheme,
		Description: "MongoDB collection, one document per record",
		Factory:     New,
		Params: map[string]registry.Param{
			ParamHost: {
				Type:        "string",
				Default:     defaultHost,
				Description: "MongoDB server host",
			},
			ParamPort: {
				Type:        "integer",
				Default:     defaultPort,
				Description: "MongoDB server port",
			},
			ParamUser: {
				Type:        "string",
				Description: "Username for authentication",
			},
			ParamPassword: {
				Type:        "string",
				Description: "Password for authentication",
			},
			ParamDatabase: {
				Type:        "string",
				Default:     defaultDatabase,
				Description: "Database name",
			},
			ParamPath: {
				Type:        "string",
				Description: "Database name when resolved from a URI path",
			},
			ParamCollection: {
				Type:        "string",
				Description: "Collection name, defaults to the database name",
			},
			ParamTimeout: {
				Type:        "duration",
				Default:     defaultTimeout.String(),
				Description: "Connection timeout (e.g. 5s)",
			},
		},
	})
}
