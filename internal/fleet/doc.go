// Package fleet defines the compute provider contract used to start, stop,
// terminate, describe, and launch worker instances.
package fleet
