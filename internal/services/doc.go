// Package services holds cross-cutting helpers shared by pipeline
// components: the error taxonomy used to classify external failures and
// context annotations surfaced in structured logs.
package services
