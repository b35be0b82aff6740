package main

import (
	"os"

	"github.com/mitchellh/go-homedir"
)

// expandPath expands environment variables and a leading tilde.
func expandPath(path string) string {
	p, err := homedir.Expand(os.ExpandEnv(path))
	if err != nil {
		return path
	}
	return p
}
