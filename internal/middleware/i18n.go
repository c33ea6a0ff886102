package middleware

import (
	"context"
	"net/http"
	"strings"

	"sketch3d/internal/i18n"
)

type localeContextKey struct{}
type countryContextKey struct{}

var (
	LocaleKey  = localeContextKey{}
	CountryKey = countryContextKey{}
)

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

var countryHeaders = []string{"X-Country-Code", "CF-IPCountry", "X-Appengine-Country"}

// I18N stores the negotiated locale and, when known, the caller's country in
// the request context. The GeoIP lookup only runs when no header gives a hint.
func I18N(defaultLocale string, lookup CountryLookup) func(http.Handler) http.Handler {
	if i18n.Match(defaultLocale) == "" {
		defaultLocale = i18n.LocaleEnglish
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := ResolveCountry(r, lookup)
			ctx := context.WithValue(r.Context(), LocaleKey, detectLocale(r, defaultLocale, country))
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey, country)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request, fallback string, country string) string {
	if locale := i18n.Match(r.Header.Get("X-Locale")); locale != "" {
		return locale
	}
	if locale := i18n.Match(r.Header.Get("Accept-Language")); locale != "" {
		return locale
	}
	switch {
	case strings.EqualFold(country, "ID"):
		return i18n.LocaleIndonesian
	case country != "":
		return i18n.LocaleEnglish
	case fallback != "":
		return i18n.Match(fallback)
	}
	return i18n.LocaleEnglish
}

// ResolveCountry returns a best-effort upper-case ISO country code: explicit
// headers first, then the region of a locale hint, then GeoIP.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	for _, key := range countryHeaders {
		if val := strings.TrimSpace(r.Header.Get(key)); val != "" {
			return strings.ToUpper(val)
		}
	}
	for _, hint := range []string{r.Header.Get("X-Locale"), r.Header.Get("Accept-Language")} {
		if region := localeRegion(hint); region != "" {
			return region
		}
		if i18n.Match(hint) == i18n.LocaleIndonesian {
			return "ID"
		}
	}
	if lookup == nil {
		return ""
	}
	ip := clientIP(r)
	if ip == "" {
		return ""
	}
	country, err := lookup(ip)
	if err != nil {
		return ""
	}
	return strings.ToUpper(country)
}

func localeRegion(hint string) string {
	for _, part := range strings.Split(hint, ",") {
		token := strings.TrimSpace(strings.Split(part, ";")[0])
		if idx := strings.IndexAny(token, "-_"); idx > 0 && idx < len(token)-1 {
			return strings.ToUpper(token[idx+1:])
		}
	}
	return ""
}

func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return i18n.LocaleEnglish
}

// CountryFromContext returns the ISO country code stored in the request context.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
	}
	return ""
}
