// Package pipeline implements the document lifecycle orchestrator: ingestion
// of new content-store files, the dispatch-and-process attempt against a
// remote worker, conversion submission and polling, and view-URL resolution.
// Every speculative status advance has a matching rollback on failure.
package pipeline
