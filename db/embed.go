// Package db provides the embedded database schema.
package db

import _ "embed"

// Schema contains the DDL for the client state and order summary tables.
//
//go:embed migrations/001_schema.sql
var Schema string
