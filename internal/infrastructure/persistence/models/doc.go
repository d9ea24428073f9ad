// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities should be free of GORM tags and infrastructure concerns
// 2. Persistence models contain all GORM annotations and table mappings
// 3. Mappers convert between domain entities and persistence models
// 4. Repositories use persistence models for database operations
//
// Structure:
// - base.go: BaseModel shared by all tables
// - inventory.go: inventory_items
// - integration.go: stock_sync_records, remote_order_lines, audit_logs
//
// The SQL in migrations/ is the source of truth for production schemas; the
// gorm tags mirror it so tests can AutoMigrate the same shape.
package models
