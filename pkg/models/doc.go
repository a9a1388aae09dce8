// Package models contains the wire types of the podcast-generation API and the
// client-side records built from them.
package models
