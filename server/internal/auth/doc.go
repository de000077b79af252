// Package auth provides authentication for stewardlens-server.
//
// APIKeyInterceptor(mode, header, key) returns a gRPC UnaryServerInterceptor
// that validates the API key from the named gRPC metadata header.
// APIKeyMiddleware(mode, header, key) applies the same check to HTTP
// requests, also accepting the key as an api_key query parameter.
//
// When mode != "apikey" or key == "", all calls pass through (useful for local
// development with auth disabled). A wrong or absent key yields
// codes.Unauthenticated over gRPC and 401 over HTTP.
package auth
