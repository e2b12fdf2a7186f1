package upload

import (
	"net/url"
	"strings"
	"unicode"
)

// minTxIDLength is the shortest word accepted as a bare transaction id.
const minTxIDLength = 40

// ExtractTxID finds the transaction id in the output of a successful upload.
// It tries, in order: a line "Uploaded to <gateway>/<id>", any line that
// mentions the gateway host, and finally any long alphanumeric word that is
// not a 0x address. It returns "" when nothing matches.
func ExtractTxID(output, gateway string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	gateway = strings.TrimRight(gateway, "/")

	prefix := "Uploaded to " + gateway + "/"
	for _, line := range lines {
		if strings.HasPrefix(line, prefix) {
			return lastSegment(line)
		}
	}

	host := gatewayHost(gateway)
	for _, line := range lines {
		if host != "" && strings.Contains(line, host) && strings.Contains(line, "/") {
			return lastSegment(line)
		}
	}

	for _, line := range lines {
		for _, word := range strings.Fields(line) {
			if LooksLikeTxID(word) && !strings.HasPrefix(word, "0x") {
				return word
			}
		}
	}
	return ""
}

// LooksLikeTxID reports whether s has the shape of an upload transaction id:
// at least 40 characters, alphanumeric apart from '-' and '_'.
func LooksLikeTxID(s string) bool {
	if len(s) < minTxIDLength {
		return false
	}
	alnum := 0
	for _, r := range s {
		switch {
		case r == '-' || r == '_':
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			alnum++
		default:
			return false
		}
	}
	return alnum > 0
}

func lastSegment(line string) string {
	return strings.TrimSpace(line[strings.LastIndex(line, "/")+1:])
}

func gatewayHost(gateway string) string {
	if u, err := url.Parse(gateway); err == nil && u.Host != "" {
		return u.Host
	}
	return gateway
}
