// Package flags contains the utilities for constructing the mive CLI app:
// a thin wrapper around urfave/cli/v2 with category names and the version
// string, generalized from go-ethereum's geth/internal/flags package.
package flags

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-mive/mive/internal/version"
)

// Flag category names, displayed as section headers in `mive --help`.
const (
	ChainCategory      = "CHAIN SOURCE"
	IndexerCategory    = "INDEXER"
	LoggingCategory    = "LOGGING AND DEBUGGING"
	MetricsCategory    = "METRICS AND STATS"
	APICategory        = "API AND CONSOLE"
	MiscCategory       = "MISC"
)

// NewApp creates an app with mive's name, version string and the given usage
// text; callers add its commands and flags.
func NewApp(usage string) *cli.App {
	app := cli.NewApp()
	app.Name = filepath.Base(os.Args[0])
	app.Author = ""
	app.Email = ""
	app.Version = version.WithCommit()
	app.Usage = usage
	return app
}

// HomeDir returns the current user's home directory, or the empty string if
// it cannot be determined.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return ""
}

// expandPath expands a leading "~" to the current user's home directory and
// any "$VAR"-style environment references within p.
func expandPath(p string) string {
	if strings.HasPrefix(p, "~/") || p == "~" {
		if home := HomeDir(); home != "" {
			p = home + p[1:]
		}
	}
	return os.Expand(p, os.Getenv)
}
