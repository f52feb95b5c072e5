package util

import (
	"math/big"

	"github.com/google/uuid"
)

// UIDRoot is the root for UUID-derived UIDs (PS3.5 B.2).
const UIDRoot = "2.25"

// uidNamespace scopes name-based UUIDs to this tool.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("noiseforge"))

// GenerateDeterministicUID derives a DICOM UID from key through a
// name-based (SHA-1) UUID. The same key always yields the same UID, which
// keeps seeded runs byte-reproducible.
func GenerateDeterministicUID(key string) string {
	return uuidToUID(uuid.NewSHA1(uidNamespace, []byte(key)))
}

func uuidToUID(u uuid.UUID) string {
	return UIDRoot + "." + new(big.Int).SetBytes(u[:]).String()
}
