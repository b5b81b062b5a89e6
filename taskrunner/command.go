package taskrunner

import "strings"

// SplitCommand splits a command line into the arguments of a container command override. Arguments are
// separated by runs of whitespace and keep their order; there is no quoting.
func SplitCommand(command string) []string {
	return strings.Fields(command)
}
