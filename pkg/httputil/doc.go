// Package httputil writes and parses the SSO backend's JSON envelope on the
// server side of an HTTP exchange.
//
// The client SDK never serves HTTP in production except for the loopback
// listener that receives the Google OAuth redirect. The same helpers back the
// fake SSO backend used throughout the tests, so both sides agree on the
// wire format defined in pkg/api.
//
// # Response Helpers
//
//	httputil.WriteEnvelope(w, http.StatusOK, "Login berhasil", loginResponse)
//	httputil.WritePaginated(w, "OK", users, meta)
//	httputil.WriteAPIError(w, http.StatusUnprocessableEntity, "Validasi gagal", fieldErrors)
//
// # Request Parsing
//
//	var req api.EmailPasswordLoginRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//	params, err := httputil.ParsePagination(r)
//
// # Middleware
//
//	httputil.Chain(
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//	)
package httputil
