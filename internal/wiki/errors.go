package wiki

import (
	"fmt"
	"strings"
)

// DanglingLink records a token that resolved to no page. It renders as
// broken-link markup and reports as a warning, never as a fatal error.
type DanglingLink struct {
	SourcePath string
	Token      string
}

func (d DanglingLink) String() string {
	return fmt.Sprintf("%s: [[%s]] matches no page", d.SourcePath, d.Token)
}

// AmbiguousLinkError records a token matching multiple pages under the same
// resolution rule. The build proceeds with Chosen (earliest discovered) and
// reports all candidates.
type AmbiguousLinkError struct {
	SourcePath string
	Token      string
	Chosen     string
	Candidates []string
}

func (e *AmbiguousLinkError) Error() string {
	return fmt.Sprintf("%s: [[%s]] is ambiguous between %s; using %s",
		e.SourcePath, e.Token, strings.Join(e.Candidates, ", "), e.Chosen)
}
