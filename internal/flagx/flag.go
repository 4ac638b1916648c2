// Package flagx lets several loaders share one command line. Each loader
// picks out the flags it owns and hands only those to its own FlagSet.
package flagx

import (
	"flag"
	"io"
	"strings"
)

// Select returns the arguments in args that belong to one of the named flags,
// together with their values. Names are given without dashes; "-n", "--n",
// "-n=v" and "--n=v" all match "n". A value is taken from the following
// argument unless that argument starts with a dash.
//
// The result is never nil and keeps the order of args.
func Select(args []string, names ...string) []string {
	owned := make(map[string]bool, len(names))
	for _, n := range names {
		owned[n] = true
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		name, hasValue, ok := flagName(args[i])
		if !ok || !owned[name] {
			continue
		}
		out = append(out, args[i])
		if hasValue {
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			out = append(out, args[i+1])
			i++
		}
	}
	return out
}

// flagName strips the leading dashes of arg and reports whether the value is
// attached with '='.
func flagName(arg string) (name string, hasValue, ok bool) {
	if !strings.HasPrefix(arg, "-") {
		return "", false, false
	}
	name = strings.TrimPrefix(strings.TrimPrefix(arg, "-"), "-")
	if name == "" {
		return "", false, false
	}
	if before, _, found := strings.Cut(name, "="); found {
		return before, true, true
	}
	return name, false, true
}

// ConfigPath returns the JSON config file named by -c or -config in args,
// or "" when neither is given. When both appear the last one wins.
func ConfigPath(args []string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file")
	_ = fs.Parse(Select(args, "c", "config"))

	return path
}
