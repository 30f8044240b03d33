package deviceagent

import (
	"regexp"
	"strings"
)

var (
	shellSafeRe  = regexp.MustCompile(`^[a-zA-Z0-9@%_\-+=:,./]+$`)
	shellVarRe   = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	doubleEscape = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
)

// singleQuote quotes s so the device shell treats it as one literal word.
func singleQuote(s string) string {
	if s == "" {
		return "''"
	}
	if shellSafeRe.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// doubleQuote quotes s for the device shell while still allowing variable
// interpolation, for values like PATH=/foo:$PATH.
func doubleQuote(s string) string {
	if s == "" {
		return `""`
	}
	if shellSafeRe.MatchString(s) {
		return s
	}
	return `"` + doubleEscape.Replace(s) + `"`
}

// quoteArgv joins an argument vector into one shell command line with each
// argument individually quoted, so nothing in it is shell-interpreted.
func quoteArgv(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = singleQuote(arg)
	}
	return strings.Join(quoted, " ")
}

// validShellVariable reports whether name is usable as a shell environment
// variable name.
func validShellVariable(name string) bool {
	return shellVarRe.MatchString(name)
}
