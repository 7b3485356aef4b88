// Package daemon ties the registry, pipeline, and workflow loops into a
// single-instance background process with a file lock.
package daemon
