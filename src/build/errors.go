package build

import "fmt"

// Error is a fatal failure of one build, naming the file being processed
// when it occurred.
type Error struct {
	BuildID string
	Path    string
	Err     error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("build %s failed: %v", e.BuildID, e.Err)
	}
	return fmt.Sprintf("build %s failed on %s: %v", e.BuildID, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
