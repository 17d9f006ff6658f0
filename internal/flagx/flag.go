// Package flagx holds the command-line helpers behind the layered server
// configuration (defaults, then JSON file, then flags).
package flagx

import (
	"flag"
	"os"
	"strings"
)

// ConfigEnvVar names the environment variable consulted when no -c/-config
// flag is present.
const ConfigEnvVar = "ARCHIVIA_CONFIG"

// FilterArgs keeps only the allowed flags (and their values) from args, so
// that each configuration layer can parse its own subset without failing on
// flags that belong to another layer.
//
// Both "-f value" and "-f=value" forms are recognised. A value is taken from
// the next argument only when it does not itself start with "-".
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// OSArgs is FilterArgs applied to the process arguments.
func OSArgs(allowedFlags ...string) []string {
	return FilterArgs(os.Args[1:], allowedFlags)
}

// ConfigFilePath returns the JSON config path given with -c or -config, or
// the value of ARCHIVIA_CONFIG when neither flag is set. Empty means no file.
func ConfigFilePath() string {
	var path string

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "Path to config file")
	fs.StringVar(&path, "c", "", "Path to config file (short)")
	_ = fs.Parse(OSArgs("-c", "-config"))

	if path == "" {
		path = os.Getenv(ConfigEnvVar)
	}
	return path
}
