// Package app composes the record store: it wires storage into the business
// services and manages the lifecycle of background services.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Stores, Application wiring and lifecycle
//	├── domain/             # Pure data types (user, genre, group, record, cart, order)
//	├── storage/            # Store interfaces and sentinel errors
//	│   ├── memory/         # In-memory implementation for tests and local runs
//	│   └── postgres/       # PostgreSQL implementation (sqlx, lib/pq)
//	├── services/           # Business rules, one package per aggregate
//	│   └── sweeper/        # Cron-driven release of stale cart stock
//	├── cache/              # Catalog read cache (memory, redis)
//	├── auth/               # JWT issuing and verification
//	├── httpapi/            # REST handlers, routing and audit log
//	├── metrics/            # Prometheus collectors
//	└── system/             # Service lifecycle manager
//
// # Usage
//
//	stores := app.Stores{
//	    Users:   pg,
//	    Genres:  pg,
//	    Groups:  pg,
//	    Records: pg,
//	    Carts:   pg,
//	    Orders:  pg,
//	}
//	application, err := app.New(stores, app.Options{Cache: c}, log)
//	if err != nil {
//	    return err
//	}
//	if err := application.Start(ctx); err != nil {
//	    return err
//	}
//	defer application.Stop(ctx)
//
// Any nil store falls back to the in-memory implementation, which keeps
// tests free of external dependencies.
package app
