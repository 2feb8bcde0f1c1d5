// Package preserve provides a uniform key-value access layer over multiple
// heterogeneous storage backends: an in-memory store, a local file-backed
// persistent mapping, SQLite, and MongoDB, all addressed through one URI
// scheme and one dictionary-style interface.
//
// # Architecture
//
// Every backend driver satisfies a single capability contract
// (core.Connector) and registers a factory with the process-wide registry
// under its scheme name. Connection strings resolve through the registry to
// an open connector, which callers use either through the mapping facade
// (preserve.Store) for day-to-day access or through the migration pipeline
// for bulk transfer between backends.
//
// # Quick Start
//
// Open a store from a connection string and read it back:
//
//	import (
//	    "context"
//	    "github.com/evhart/preserve/pkg/preserve"
//
//	    _ "github.com/evhart/preserve/pkg/connector/backends/memory"
//	    _ "github.com/evhart/preserve/pkg/connector/backends/shelf"
//	)
//
//	ctx := context.Background()
//	store, _ := preserve.FromURI("shelf://jam.db")
//	defer store.Close(ctx)
//
//	_ = store.Set(ctx, "strawberry", map[string]interface{}{"year": 2024})
//	value, _ := store.Get(ctx, "strawberry")
//
// Migrate a shelf file into MongoDB:
//
//	report, _ := preserve.MigrateURI(ctx,
//	    "shelf://jam.db",
//	    "mongodb://localhost/pantry?collection=jam", nil)
//
// # Key Packages
//
//	pkg/preserve           - Mapping facade and top-level open helpers
//	pkg/connector/core     - Connector capability contract
//	pkg/connector/registry - Backend registry and factories
//	pkg/connector/spec     - Connection string parsing and resolution
//	pkg/connector/backends - Backend drivers (memory, shelf, sqlite, mongodb)
//	internal/pipeline      - Streaming migration between connectors
package preserve
