package content

import (
	"bytes"

	"github.com/inful/mdfp"
)

// Fingerprint hashes a page's front matter and body into the content
// fingerprint the build cache keys staleness on. Any edit to either part
// changes the fingerprint; surrounding whitespace of the front matter block
// does not.
func Fingerprint(frontmatter, body []byte) string {
	return mdfp.CalculateFingerprintFromParts(string(bytes.TrimSpace(frontmatter)), string(body))
}
