package identity

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// puppetArc is the OID prefix under which Puppet stores trusted facts.
const puppetArc = "1.3.6.1.4.1.34380.1."

// ParseCertificate decodes a PEM agent certificate into trusted facts. The
// certname is the subject common name.
func ParseCertificate(pemData []byte) (Facts, error) {
	block, _ := pem.Decode(pemData)
	if block == nil || block.Type != "CERTIFICATE" {
		return Facts{}, fmt.Errorf("no PEM certificate found")
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return Facts{}, fmt.Errorf("failed to parse certificate: %w", err)
	}

	facts := Facts{
		Certname:   cert.Subject.CommonName,
		Extensions: make(map[string]string),
	}
	for _, ext := range cert.Extensions {
		oid := ext.Id.String()
		if !strings.HasPrefix(oid, puppetArc) {
			continue
		}
		facts.Extensions[oid] = decodeExtensionValue(ext.Value)
	}
	return facts, nil
}

// decodeExtensionValue unwraps a DER string. Puppet writes UTF8String, but
// older CAs used other string types; anything else is returned raw.
func decodeExtensionValue(der []byte) string {
	input := cryptobyte.String(der)
	for _, tag := range []cbasn1.Tag{cbasn1.UTF8String, cbasn1.PrintableString, cbasn1.IA5String} {
		var out cryptobyte.String
		s := input
		if s.ReadASN1(&out, tag) && s.Empty() {
			return string(out)
		}
	}
	return string(der)
}
