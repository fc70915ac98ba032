// Package namespace resolves prefixed tool names to their owning backend
// server and converts between prefixed and unprefixed forms.
package namespace
