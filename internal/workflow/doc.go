// Package workflow runs the daemon's periodic loops over the pipeline
// orchestrator, dispatcher, and autoscaler, and reports their last outcomes.
package workflow
