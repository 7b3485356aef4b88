// Package dispatch assigns queued documents to processor slots, least-loaded
// processors first, and fans each pair out to the pipeline orchestrator.
package dispatch
