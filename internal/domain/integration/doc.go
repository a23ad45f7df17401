// Package integration contains the Integration bounded context.
// This context manages a tenant's connections to third-party sales and
// logistics platforms (order-taking apps and delivery dispatch services).
//
// Key concepts:
//   - Integration: Entity holding one platform connection, its credentials and its sync status
//   - Platform catalog: Static description of every supported platform and its required credentials
//   - Adapter: Port interface implemented once per platform (sales and/or logistics capability)
//   - SyncLog: Immutable record of one sync attempt
//   - InboxItem: Durable record of ingested data that could not be applied automatically
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
