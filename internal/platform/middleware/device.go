package middleware

import (
	"fmt"
	"net/http"

	"github.com/mssola/useragent"

	"lendgate/pkg/requestcontext"
)

// Device parses the User-Agent header into a short device summary for audit
// events. Parsing failures just leave the summary empty.
func Device(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("User-Agent")
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		ua := useragent.New(raw)
		name, version := ua.Browser()
		summary := name
		if version != "" {
			summary = fmt.Sprintf("%s %s", name, version)
		}
		if os := ua.OS(); os != "" {
			summary = fmt.Sprintf("%s / %s", summary, os)
		}
		ctx := requestcontext.WithDevice(r.Context(), summary)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
