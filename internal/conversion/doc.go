// Package conversion wraps the external service that renders processed
// documents into an HTML-viewable form.
package conversion
