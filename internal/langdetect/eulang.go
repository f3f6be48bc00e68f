// Package langdetect assigns ISO-639-1 codes to speech bodies using two
// independent classifiers plus script heuristics. Detection is purely
// functional: no I/O, idempotent, and never a code outside the EU set.
package langdetect

// euCodes is the fixed 24-language set of official EU languages, upper-case
// ISO-639-1.
var euCodes = map[string]bool{
	"BG": true, "CS": true, "DA": true, "DE": true, "EL": true, "EN": true,
	"ES": true, "ET": true, "FI": true, "FR": true, "GA": true, "HR": true,
	"HU": true, "IT": true, "LT": true, "LV": true, "MT": true, "NL": true,
	"PL": true, "PT": true, "RO": true, "SK": true, "SL": true, "SV": true,
}

// IsEUCode reports whether code is an upper-case ISO-639-1 code from the EU
// set.
func IsEUCode(code string) bool {
	return euCodes[code]
}
