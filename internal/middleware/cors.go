// Package middleware provides HTTP middleware for the proposal chat API.
package middleware

import "net/http"

// CORSOptions configures the CORS middleware.
type CORSOptions struct {
	// AllowedOrigins lists origins allowed to call the API. "*" allows any
	// origin, without credentials.
	AllowedOrigins []string
	// AllowedMethods overrides the default "GET, POST, OPTIONS".
	AllowedMethods string
	// AllowedHeaders overrides the default "Content-Type".
	AllowedHeaders string
}

// CORS returns middleware that handles CORS headers for the chat widget,
// which is typically embedded on a different origin than the API.
func CORS(opts CORSOptions) func(http.Handler) http.Handler {
	methods := opts.AllowedMethods
	if methods == "" {
		methods = "GET, POST, OPTIONS"
	}
	headers := opts.AllowedHeaders
	if headers == "" {
		headers = "Content-Type"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			for _, o := range opts.AllowedOrigins {
				if o == "*" || o == origin {
					allowed = true
					break
				}
			}

			if allowed && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", methods)
				w.Header().Set("Access-Control-Allow-Headers", headers)
				// Only allow credentials for explicit origins, not wildcard
				// matches. Credentials on a wildcard-echoed origin enable CSRF.
				for _, o := range opts.AllowedOrigins {
					if o != "*" && o == origin {
						w.Header().Set("Access-Control-Allow-Credentials", "true")
						break
					}
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
