package extract

import (
	"bytes"

	"github.com/cunning-folk/Document-Processor/internal/config"
)

var pdfMagic = []byte("%PDF-")

const (
	msgEncryptedPDF = "This PDF has password protection or encryption. Remove the password and upload the file again."
	msgCiphertext   = "This file appears to have been encrypted before upload. Please upload the original, unencrypted document."
)

type encryptionMarker struct {
	token   []byte
	message string
}

// Markers checked before any extraction attempt. OCR on encrypted streams
// cannot succeed and would waste the page budget, so a hit fails fast.
var encryptionMarkers = []encryptionMarker{
	{[]byte("/Encrypt"), msgEncryptedPDF},
	{[]byte("Salted__"), msgCiphertext},   //openssl/CryptoJS ciphertext preamble
	{[]byte("U2FsdGVkX1"), msgCiphertext}, //the same preamble, base64-encoded
}

func hasPDFMagic(buf []byte) bool {
	//the signature may sit after a small amount of leading junk
	limit := 1024
	if len(buf) < limit {
		limit = len(buf)
	}
	return bytes.Contains(buf[:limit], pdfMagic)
}

// detectEncryption scans a bounded prefix of the raw buffer for encryption
// markers. It returns the user-facing message captured at detection time,
// which carries the actionable remediation text.
func detectEncryption(buf []byte) (string, bool) {
	limit := config.EncryptionScanPrefix
	if len(buf) < limit {
		limit = len(buf)
	}
	prefix := buf[:limit]

	for _, marker := range encryptionMarkers {
		if bytes.Contains(prefix, marker.token) {
			return marker.message, true
		}
	}
	return "", false
}

// containsEncryptionMarker re-checks extracted text. A text layer that still
// carries markers means the extraction read ciphertext, not content.
func containsEncryptionMarker(text string) (string, bool) {
	for _, marker := range encryptionMarkers {
		if bytes.Contains([]byte(text), marker.token) {
			return marker.message, true
		}
	}
	return "", false
}
