// Package middleware provides HTTP middleware for the platform's web
// surfaces.
//
// The brand middleware resolves the tenant brand for every request from
// the request host, an explicit query parameter, or a process-level
// override, and stores it in the request context:
//
//	mux := http.NewServeMux()
//	handler := middleware.Brand()(mux)
//
//	// Inside a handler:
//	if b, ok := middleware.GetBrand(r.Context()); ok {
//		log.Printf("serving brand %s", b.BrandID)
//	}
//
// Resolution never fails; unknown hosts fall back to the registry
// default brand.
package middleware
