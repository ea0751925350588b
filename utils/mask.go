package utils

import "strings"

// MaskEmail hides the local part of an email except its first and last
// character. "someone@example.com" becomes "s*****e@example.com".
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 1 {
		return email
	}
	local := email[:at]
	if len(local) <= 2 {
		return local[:1] + "***" + email[at:]
	}
	return local[:1] + strings.Repeat("*", len(local)-2) + local[len(local)-1:] + email[at:]
}

// MaskTFN shows only the last three digits of a tax file number.
func MaskTFN(tfn string) string {
	if len(tfn) < 4 {
		return strings.Repeat("*", len(tfn))
	}
	return strings.Repeat("*", len(tfn)-3) + tfn[len(tfn)-3:]
}

// MaskABN shows only the last four digits of an ABN.
func MaskABN(abn string) string {
	if len(abn) < 5 {
		return strings.Repeat("*", len(abn))
	}
	return strings.Repeat("*", len(abn)-4) + abn[len(abn)-4:]
}
