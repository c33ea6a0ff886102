// Package i18n localizes the client-facing error messages. Keys are the
// English messages themselves, so an unknown locale or key prints the key.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	LocaleEnglish    = "en"
	LocaleIndonesian = "id"
)

var supported = []language.Tag{language.English, language.Indonesian}

var matcher = language.NewMatcher(supported)

var indonesian = map[string]string{
	"Prompt is required":                         "Prompt wajib diisi",
	"Image is required":                          "Gambar wajib diisi",
	"Unsupported request kind":                   "Jenis permintaan tidak didukung",
	"Invalid request body":                       "Body permintaan tidak valid",
	"Request body too large":                     "Body permintaan terlalu besar",
	"Too many requests":                          "Terlalu banyak permintaan",
	"No model URL returned":                      "URL model tidak dikembalikan",
	"No model URL returned after polling":        "URL model tidak dikembalikan setelah polling",
	"No fetch_result returned from ModelsLab":    "fetch_result tidak dikembalikan oleh ModelsLab",
	"No fetch_result returned from image_to_3d":  "fetch_result tidak dikembalikan oleh image_to_3d",
	"Failed to upload image to ModelsLab":        "Gagal mengunggah gambar ke ModelsLab",
	"No URL returned from base64_to_url":         "URL tidak dikembalikan oleh base64_to_url",
	"Text-to-3D task did not complete":           "Tugas Text-to-3D tidak selesai",
	"Image-to-3D task did not complete":          "Tugas Image-to-3D tidak selesai",
	"Text-to-3D failed":                          "Text-to-3D gagal",
	"Image-to-3D failed":                         "Image-to-3D gagal",
	"Internal server error":                      "Terjadi kesalahan pada server",
}

var printers = map[string]*message.Printer{}

func init() {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, msg := range indonesian {
		if err := b.SetString(language.English, key, key); err != nil {
			panic(err)
		}
		if err := b.SetString(language.Indonesian, key, msg); err != nil {
			panic(err)
		}
	}
	printers[LocaleEnglish] = message.NewPrinter(language.English, message.Catalog(b))
	printers[LocaleIndonesian] = message.NewPrinter(language.Indonesian, message.Catalog(b))
}

// Match maps a locale hint such as "id-ID" or an Accept-Language header onto
// a supported locale. Empty or unparseable input yields "".
func Match(hint string) string {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(hint)
	if err != nil || len(tags) == 0 {
		return ""
	}
	_, idx, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return LocaleEnglish
	}
	base, _ := supported[idx].Base()
	return base.String()
}

// Translate renders key in locale, falling back to English.
func Translate(locale, key string) string {
	p, ok := printers[locale]
	if !ok {
		p = printers[LocaleEnglish]
	}
	return p.Sprintf(key)
}
