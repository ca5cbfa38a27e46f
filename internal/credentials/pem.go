package credentials

import (
	"strings"
)

const (
	beginMarker = "-----BEGIN"
	endMarker   = "-----END"
	// Closing token of the begin line once whitespace is gone, e.g.
	// "-----BEGINPRIVATEKEY-----".
	labelTerminator = "KEY-----"
	pemLineWidth    = 64
)

// keyForm classifies a stored key secret.
type keyForm int

const (
	// formRaw has no PEM markers and is used as-is.
	formRaw keyForm = iota
	// formPEM was rebuilt into canonical PEM.
	formPEM
	// formMalformed has both markers but no usable payload between them.
	formMalformed
)

var whitespaceStripper = strings.NewReplacer(" ", "", "\r", "", "\n", "")

// Collapsed labels mapped back to their PEM spelling.
var pemLabels = map[string]string{
	"PRIVATEKEY":    "PRIVATE KEY",
	"RSAPRIVATEKEY": "RSA PRIVATE KEY",
	"ECPRIVATEKEY":  "EC PRIVATE KEY",
}

// NormalizePEM rebuilds a private key PEM whose line breaks were damaged in
// storage. When raw carries both boundary markers, all spaces, CRs, and LFs
// are removed, the base64 payload between the markers is rewrapped at 64
// columns, and the rebuilt document is returned with ok set. Otherwise raw is
// returned unchanged and ok is false.
func NormalizePEM(raw string) ([]byte, bool) {
	out, form := normalize(raw)
	return out, form == formPEM
}

func normalize(raw string) ([]byte, keyForm) {
	if !strings.Contains(raw, beginMarker) || !strings.Contains(raw, endMarker) {
		return []byte(raw), formRaw
	}

	collapsed := whitespaceStripper.Replace(raw)

	term := strings.Index(collapsed, labelTerminator)
	end := strings.Index(collapsed, endMarker)
	start := term + len(labelTerminator)
	if term <= 0 || end <= start {
		// Inverted or empty span: leave the bytes alone so the failure
		// surfaces at parse time.
		return []byte(raw), formMalformed
	}

	label := pemLabel(collapsed, term)
	payload := collapsed[start:end]

	var b strings.Builder
	b.Grow(len(payload) + len(payload)/pemLineWidth + 2*len(label) + 40)
	b.WriteString("-----BEGIN ")
	b.WriteString(label)
	b.WriteString("-----\n")
	for i := 0; i < len(payload); i += pemLineWidth {
		j := i + pemLineWidth
		if j > len(payload) {
			j = len(payload)
		}
		b.WriteString(payload[i:j])
		b.WriteByte('\n')
	}
	b.WriteString("-----END ")
	b.WriteString(label)
	b.WriteString("-----\n")

	return []byte(b.String()), formPEM
}

// pemLabel recovers the block type from the collapsed begin line. Unknown or
// misplaced labels fall back to PKCS#8.
func pemLabel(collapsed string, term int) string {
	begin := strings.Index(collapsed, beginMarker)
	from := begin + len(beginMarker)
	to := term + len("KEY")
	if begin < 0 || from > to {
		return "PRIVATE KEY"
	}
	if label, ok := pemLabels[collapsed[from:to]]; ok {
		return label
	}
	return "PRIVATE KEY"
}
