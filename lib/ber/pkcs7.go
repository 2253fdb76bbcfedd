package ber

import "encoding/asn1"

// PKCS#7 content types (RFC 2315 section 14)
var (
	OIDData                   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	OIDSignedData             = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	OIDEnvelopedData          = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 3}
	OIDSignedAndEnvelopedData = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 4}
	OIDDigestedData           = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 5}
	OIDEncryptedData          = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 6}
)

var contentTypes = []struct {
	oid  asn1.ObjectIdentifier
	name string
}{
	{OIDData, "data"},
	{OIDSignedData, "signedData"},
	{OIDEnvelopedData, "envelopedData"},
	{OIDSignedAndEnvelopedData, "signedAndEnvelopedData"},
	{OIDDigestedData, "digestedData"},
	{OIDEncryptedData, "encryptedData"},
}

// ContentTypeName returns the name of a PKCS#7 content type or "" if
// oid isn't one
func ContentTypeName(oid asn1.ObjectIdentifier) string {
	for _, ct := range contentTypes {
		if ct.oid.Equal(oid) {
			return ct.name
		}
	}
	return ""
}
