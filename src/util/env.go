package util

import (
	"regexp"
	"strings"
)

// EnvPrefix namespaces every exposed build variable.
const EnvPrefix = "ASSETC_"

// Exposed build metadata keys.
const (
	EnvInput      = "INPUT"
	EnvInputHash  = "INPUT_HASH"
	EnvInputDate  = "INPUT_DATE"
	EnvOutput     = "OUTPUT"
	EnvOutputHash = "OUTPUT_HASH"
	EnvOutputDate = "OUTPUT_DATE"
	EnvOutputURL  = "OUTPUT_URL"
)

// EnvSetter stores environment variables.
type EnvSetter interface {
	Set(key, value string)
}

var reEnvUnsafe = regexp.MustCompile(`[^A-Z0-9]+`)

// EnvName builds the variable name for key, scoped to a build id when given.
func EnvName(key, id string) string {
	if id == "" {
		return EnvPrefix + key
	}
	scope := strings.Trim(reEnvUnsafe.ReplaceAllString(strings.ToUpper(id), "_"), "_")
	if scope == "" {
		return EnvPrefix + key
	}
	return EnvPrefix + scope + "_" + key
}

// ExposeEnv sets key both scoped to id and unscoped, so scripts can address
// a specific build or simply the most recent one.
func ExposeEnv(env EnvSetter, key, id, value string) {
	if env == nil {
		return
	}
	env.Set(EnvName(key, ""), value)
	if id != "" {
		env.Set(EnvName(key, id), value)
	}
}
