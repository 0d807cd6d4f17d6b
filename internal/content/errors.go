package content

import "fmt"

// MalformedFrontMatterError marks a document whose front matter block could
// not be parsed. The page is excluded from the build; the error is reported,
// never silently dropped.
type MalformedFrontMatterError struct {
	Path string
	Err  error
}

func (e *MalformedFrontMatterError) Error() string {
	return fmt.Sprintf("malformed front matter in %s: %v", e.Path, e.Err)
}

func (e *MalformedFrontMatterError) Unwrap() error { return e.Err }
