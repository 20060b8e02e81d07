// Package migration manages schema migrations for the documents store
// using golang-migrate with embedded SQL files for PostgreSQL and SQLite.
package migration
