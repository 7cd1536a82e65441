// Package rulesets embeds the rulesets that ship with Guardian.
package rulesets

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"candela-hq/guardian/pkg/ruleset"
)

//go:embed *.json *.yaml
var files embed.FS

// Names lists the built-in ruleset names.
func Names() []string {
	entries, _ := fs.ReadDir(files, ".")
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(names)
	return names
}

// Load parses the built-in ruleset called name.
func Load(name string) (*ruleset.Ruleset, error) {
	data, file, err := read(name)
	if err != nil {
		return nil, err
	}
	return ruleset.Parse(data, ruleset.FormatForPath(file), "builtin:"+name)
}

// Bytes returns the raw document of the built-in ruleset called name.
func Bytes(name string) ([]byte, error) {
	data, _, err := read(name)
	return data, err
}

func read(name string) ([]byte, string, error) {
	for _, ext := range []string{".json", ".yaml"} {
		data, err := files.ReadFile(name + ext)
		if err == nil {
			return data, name + ext, nil
		}
	}
	return nil, "", &ruleset.LoadError{
		Origin: "builtin:" + name,
		Cause:  fmt.Errorf("no built-in ruleset named %q (available: %s)", name, strings.Join(Names(), ", ")),
	}
}

// Resolve loads ref as a file path when such a file exists, and as a
// built-in ruleset name otherwise.
func Resolve(ref string) (*ruleset.Ruleset, error) {
	if _, err := os.Stat(ref); err == nil {
		return ruleset.LoadFile(ref)
	}
	return Load(ref)
}
