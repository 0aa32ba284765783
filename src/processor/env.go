package processor

import (
	"fmt"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/pboueri/assetc/src/util"
)

// OSEnvironment reads and writes the process environment.
type OSEnvironment struct{}

func NewOSEnvironment() *OSEnvironment {
	return &OSEnvironment{}
}

func (e *OSEnvironment) Get(key string) (string, bool) {
	return os.LookupEnv(key)
}

func (e *OSEnvironment) Set(key, value string) {
	os.Setenv(key, value)
}

// LoadDotenv loads .env style files into the process environment. Missing
// files are skipped; existing variables are not overridden.
func LoadDotenv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if util.FileExists(p) {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// MapEnvironment is an in-memory Environment.
type MapEnvironment struct {
	mu   sync.RWMutex
	vars map[string]string
}

func NewMapEnvironment(vars map[string]string) *MapEnvironment {
	copied := make(map[string]string, len(vars))
	for k, v := range vars {
		copied[k] = v
	}
	return &MapEnvironment{vars: copied}
}

// NewDotenvEnvironment reads path into a MapEnvironment without touching
// the process environment.
func NewDotenvEnvironment(path string) (*MapEnvironment, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return NewMapEnvironment(vars), nil
}

func (e *MapEnvironment) Get(key string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.vars[key]
	return v, ok
}

func (e *MapEnvironment) Set(key, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vars[key] = value
}

// Vars returns a copy of the stored variables.
func (e *MapEnvironment) Vars() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]string, len(e.vars))
	for k, v := range e.vars {
		out[k] = v
	}
	return out
}
