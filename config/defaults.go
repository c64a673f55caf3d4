package config

import _ "embed"

// Default holds the embedded baseline configuration. User conf.yaml files are
// merged on top of it.
//
//go:embed conf.yaml
var Default []byte
