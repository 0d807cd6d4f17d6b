package build

import "errors"

// Sentinel domain errors used to classify high-level pipeline failures.
// They should always be wrapped with contextual information at the call site.
var (
	ErrLoad    = errors.New("wikigen: content load error")
	ErrResolve = errors.New("wikigen: link resolution error")
	ErrRender  = errors.New("wikigen: render error")
	ErrPublish = errors.New("wikigen: publish error")
)
