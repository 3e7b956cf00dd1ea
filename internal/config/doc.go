// Package config holds the two configuration layers of the bootstrap.
//
// Settings is the optional operator file in YAML format, located through the
// BRICKS_BOOTSTRAP_SETTINGS environment variable. It overrides endpoints, the
// pinned executable and a few tunables; without it the built-in defaults apply.
//
// Local is the small versioned JSON record kept in the per-user configuration
// directory. It controls how long a cached manifest is trusted and heals
// itself: a missing, unreadable or outdated record is replaced by defaults.
package config
