package util

import (
	"strings"
)

// SplitArgs separates key=value arguments from positional ones.
func SplitArgs(args []string) ([]string, map[string]string) {
	var positional []string
	kwargs := map[string]string{}
	for _, arg := range args {
		p := strings.SplitN(arg, "=", 2)
		if len(p) == 2 {
			kwargs[p[0]] = p[1]
		} else {
			positional = append(positional, p[0])
		}
	}
	return positional, kwargs
}

// SplitList splits a comma separated value, dropping empty items.
func SplitList(value string) []string {
	var ret []string
	for _, s := range strings.Split(value, ",") {
		if s = strings.TrimSpace(s); s != "" {
			ret = append(ret, s)
		}
	}
	return ret
}
