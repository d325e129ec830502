// Package startup loads configuration from the environment and validates
// the directories the service depends on.
package startup
