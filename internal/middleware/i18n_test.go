package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type localeSeen struct {
	locale  string
	country string
}

func serveI18N(t *testing.T, defaultLocale string, lookup CountryLookup, header map[string]string) localeSeen {
	t.Helper()
	var seen localeSeen
	h := I18N(defaultLocale, lookup)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = localeSeen{locale: LocaleFromContext(r.Context()), country: CountryFromContext(r.Context())}
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/text-to-3d", nil)
	req.RemoteAddr = "203.0.113.4:80"
	for k, v := range header {
		req.Header.Set(k, v)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
	return seen
}

func TestI18NStoresLocaleAndCountry(t *testing.T) {
	geo := func(country string) CountryLookup {
		return func(ip string) (string, error) {
			if ip != "203.0.113.4" {
				t.Errorf("lookup got ip %q", ip)
			}
			return country, nil
		}
	}

	tests := []struct {
		name          string
		defaultLocale string
		lookup        CountryLookup
		header        map[string]string
		want          localeSeen
	}{
		{
			name:   "x-locale with region",
			header: map[string]string{"X-Locale": "id-ID"},
			want:   localeSeen{locale: "id", country: "ID"},
		},
		{
			name:   "x-locale beats accept-language",
			header: map[string]string{"X-Locale": "en", "Accept-Language": "id-ID"},
			want:   localeSeen{locale: "en", country: "ID"},
		},
		{
			name:   "unsupported language falls back to en",
			header: map[string]string{"Accept-Language": "fr-FR,fr;q=0.9"},
			want:   localeSeen{locale: "en", country: "FR"},
		},
		{
			name:   "bare indonesian implies country",
			header: map[string]string{"Accept-Language": "id;q=0.8"},
			want:   localeSeen{locale: "id", country: "ID"},
		},
		{
			name:          "configured default without hints",
			defaultLocale: "id",
			want:          localeSeen{locale: "id"},
		},
		{
			name:          "invalid default falls back to en",
			defaultLocale: "not a locale!",
			want:          localeSeen{locale: "en"},
		},
		{
			name:          "geoip country drives locale",
			defaultLocale: "en",
			lookup:        geo("id"),
			want:          localeSeen{locale: "id", country: "ID"},
		},
		{
			name:          "geoip non-indonesian country",
			defaultLocale: "id",
			lookup:        geo("my"),
			want:          localeSeen{locale: "en", country: "MY"},
		},
		{
			name:          "geoip error leaves country empty",
			defaultLocale: "id",
			lookup: func(string) (string, error) {
				return "", errors.New("database closed")
			},
			want: localeSeen{locale: "id"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := serveI18N(t, tc.defaultLocale, tc.lookup, tc.header)
			if got != tc.want {
				t.Fatalf("I18N stored %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestI18NSkipsLookupWhenHeaderGivesCountry(t *testing.T) {
	for _, header := range []string{"X-Country-Code", "CF-IPCountry", "X-Appengine-Country"} {
		t.Run(header, func(t *testing.T) {
			calls := 0
			lookup := func(string) (string, error) {
				calls++
				return "US", nil
			}
			got := serveI18N(t, "en", lookup, map[string]string{header: "id"})
			if calls != 0 {
				t.Fatalf("geoip lookup ran %d times despite %s", calls, header)
			}
			if got != (localeSeen{locale: "id", country: "ID"}) {
				t.Fatalf("I18N stored %+v", got)
			}
		})
	}
}

func TestI18NLocalizesErrorBodies(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := I18N("en", nil)(RateLimit(ctx, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/image-to-3d", nil)
		req.Header.Set("Accept-Language", "id-ID,id;q=0.9")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}
	call()
	rec := call()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "Terlalu banyak permintaan" {
		t.Fatalf("error = %q, want the Indonesian message", body["error"])
	}
}

func TestLocaleFromContextDefaultsToEnglish(t *testing.T) {
	if got := LocaleFromContext(context.Background()); got != "en" {
		t.Fatalf("LocaleFromContext() = %q, want en", got)
	}
	if got := CountryFromContext(context.Background()); got != "" {
		t.Fatalf("CountryFromContext() = %q, want empty", got)
	}
}
