// Package testsupport provides shared helpers for package tests: temp-backed
// configurations and registry stores.
package testsupport
