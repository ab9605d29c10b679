// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain records so the ledgers stay free of ORM concerns.
//
// The relational store keeps one row per collection; the records of a collection are
// stored as a JSON array and replaced as a whole on every save.
package models
