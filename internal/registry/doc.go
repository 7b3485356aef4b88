// Package registry persists the document and processor registries in SQLite.
// The two registries are independent; no transaction spans both, and updates
// are last-writer-wins.
package registry
