// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
//   - base.go: base persistence models (BaseModel, AggregateModel)
//   - group_order.go: the group order aggregate (groups, members, items)
//   - order.go: orders produced by checkout
//   - directory.go: read models for users, addresses and the product catalog
package models
