// Package lifecycle holds process-wide start/stop constants shared by fx hooks.
package lifecycle

import "time"

// DefaultTimeout bounds every OnStart/OnStop hook (database ping, server shutdown).
const DefaultTimeout = 10 * time.Second
