// Package registry maps the handler names used in graph definitions to the
// Go functions that implement them.
//
// Modules register their handlers during application startup. The registry
// is then validated so that a handler whose input struct cannot be decoded
// is reported before any graph runs, rather than as a node fault.
package registry
