package i18n

import "net/http"

// Middleware picks a localizer from the Accept-Language header and stores it
// in the request context.
func (t *Translator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept := r.Header.Get("Accept-Language")
		loc := t.Localizer(accept)
		w.Header().Set("Content-Language", t.Match(accept).String())
		next.ServeHTTP(w, r.WithContext(WithLocalizer(r.Context(), loc)))
	})
}
