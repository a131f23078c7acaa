package formflow

import _ "embed"

// Version is the release of the formflow module.
//
//go:embed VERSION
var Version string
