package parser

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fixed hash domain prefix. Deliberately not a per-process secret: the same
// IP must hash to the same visitor id across files and runs so visitors keep
// their identity.
const visitorHashPrefix = "edgelytics-visitor-v1:"

// HashVisitorID derives the stable, one-way visitor identity from a raw
// client IP. The raw IP must never reach durable storage or logs; this digest
// is the only form that leaves the decoder.
func HashVisitorID(ip string) string {
	sum := sha256.Sum256([]byte(visitorHashPrefix + ip))
	return hex.EncodeToString(sum[:])[:32]
}
