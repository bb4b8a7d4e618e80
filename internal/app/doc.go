// Package app provides the application composition layer for the ticket relay.
//
// # Architecture Role
//
// The app package composes storage, the chain client and the domain services
// into a running application. It is not a business logic layer; business
// rules live in internal/app/services.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── ticket/         # Ledger records and on-chain ticket state
//	│   ├── event/          # Events
//	│   └── user/           # Credentials
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # UserStore, EventStore, TransactionStore
//	│   ├── memory/         # In-memory implementation for tests and local runs
//	│   └── postgres/       # PostgreSQL implementation
//	├── services/           # auth, tickets, events, payments, reconcile
//	├── httpapi/            # HTTP routing and handlers
//	├── runtime/            # Process bootstrap from configuration
//	├── system/             # Lifecycle manager
//	└── metrics/            # Prometheus collectors
//
// # Dependency Direction
//
//	cmd/mintix/
//	      │
//	      ▼
//	internal/app/runtime ──► internal/app (composition) ──► internal/app/services
//	                                                              │
//	                                                              ├──► internal/chain
//	                                                              └──► internal/app/storage
//
// # Example: Adding a New Domain
//
//  1. Create domain models in internal/app/domain/<name>/
//  2. Add a storage interface to internal/app/storage/interfaces.go
//  3. Implement it in internal/app/storage/postgres/ and memory/
//  4. Create the service in internal/app/services/<name>/
//  5. Wire it in internal/app/application.go
//  6. Add routes in internal/app/httpapi/
package app
