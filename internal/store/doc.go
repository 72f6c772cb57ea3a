// Package store persists actor configurations, module names, and sensor
// readings in a SQLite database.
package store
