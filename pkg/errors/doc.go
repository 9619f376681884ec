// Package errors provides standardized error definitions for the confsync
// server. All error definitions are centralized here to ensure consistency
// across components.
package errors
