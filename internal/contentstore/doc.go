// Package contentstore defines the gateway contract for the external
// document store and provides an S3-compatible adapter.
package contentstore
