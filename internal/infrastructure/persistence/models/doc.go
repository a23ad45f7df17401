// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns.
//
// Structure:
//   - base.go: BaseModel and the model list used by tests and tooling
//   - integration.go: integrations, sync_logs and inbox_items
package models
