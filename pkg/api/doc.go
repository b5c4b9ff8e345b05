// Package api defines the wire types of the SSO portal REST API.
//
// Every endpoint answers with the envelope
//
//	{"error": false, "message": "...", "timestamp": "...", "data": ..., "meta": {...}}
//
// where meta is only present on list endpoints. Failures carry the same
// envelope with error=true, an optional detail string and, for validation
// failures, a map of field name to messages. ParseError folds transport
// failures and server envelopes into a single *Error.
package api
