package httpapi

import "net/http"

// setCORSHeaders marks a proxy response as callable from any origin.
// Proxy tokens are bearer credentials, not cookies, so a permissive
// policy does not widen the attack surface.
func setCORSHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
	h.Set("Access-Control-Max-Age", "86400")
}

// handlePreflight answers CORS preflights without touching auth.
func handlePreflight(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}
