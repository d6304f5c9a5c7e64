package server

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
)

// fingerprint derives a stable cache key from the request path and query.
// url.Values.Encode sorts keys, so two requests that differ only in query
// parameter order produce the same key.
func fingerprint(path string, q url.Values) string {
	canonical := path
	if enc := q.Encode(); enc != "" {
		canonical += "?" + enc
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
