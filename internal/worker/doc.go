// Package worker implements the binary file exchange protocol spoken by
// remote document processors.
package worker
