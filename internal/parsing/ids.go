package parsing

import (
	"crypto/md5" //nolint:gosec // identifiers only, not security sensitive
	"encoding/hex"
	"fmt"
	"strings"
)

// idLength is the number of hex characters kept from the content hash.
const idLength = 16

// DefaultNamespace is the leading path segment under which extracted résumé text is stored.
const DefaultNamespace = "structured"

// GenerateID derives a stable identifier from a listing's title, company and a
// discriminator (usually its URL). Case is ignored, so re-scraping converges on one id.
func GenerateID(title, company, discriminator string) string {
	key := strings.ToLower(fmt.Sprintf("%s_%s_%s", title, company, discriminator))
	sum := md5.Sum([]byte(key)) //nolint:gosec // see import
	return hex.EncodeToString(sum[:])[:idLength]
}

// ExtractIdentifierFromPath pulls the candidate identifier out of an object path following
// <namespace>/<id>/<filename>. Paths that do not follow the convention fall back to the
// first segment longer than three characters that is neither the namespace nor a .txt file.
func ExtractIdentifierFromPath(path, namespace string) (string, bool) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 3 && parts[0] == namespace && parts[1] != "" {
		return parts[1], true
	}
	for _, part := range parts {
		if len(part) > 3 && part != namespace && !strings.HasSuffix(part, ".txt") {
			return part, true
		}
	}
	return "", false
}
