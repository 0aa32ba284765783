package config

import "github.com/pboueri/assetc/src/logger"

// RuntimeOptions are the command line switches shared by every build of a
// run.
type RuntimeOptions struct {
	Compress bool
	Deploy   bool
	Lazy     bool
	Reload   bool
	Serve    bool
	Script   bool
	Watch    bool
	Verbose  int

	// Targets select root builds by label or input glob; Invert selects the
	// others.
	Targets []string
	Invert  bool

	Version string
}

// LogLevel maps the verbosity count to a logger level.
func (o RuntimeOptions) LogLevel() logger.Level {
	if o.Verbose > 0 {
		return logger.DebugLevel
	}
	return logger.InfoLevel
}
