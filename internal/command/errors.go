package command

import "fmt"

// CmdError is a tagged reply error: every error begins with a
// short uppercase tag clients can match on programmatically.
type CmdError struct {
	Tag string
	Msg string
}

func (e *CmdError) Error() string { return fmt.Sprintf("%s %s", e.Tag, e.Msg) }

func newErr(tag, format string, a ...any) *CmdError {
	return &CmdError{Tag: tag, Msg: fmt.Sprintf(format, a...)}
}

func errWrongType() *CmdError {
	return newErr("WRONGTYPE", "Operation against a key holding the wrong kind of value")
}

func errSyntax() *CmdError {
	return newErr("ERR", "syntax error")
}

func errWrongArgs(cmd string) *CmdError {
	return newErr("ERR", "wrong number of arguments for '%s' command", cmd)
}

func errNotInt() *CmdError {
	return newErr("ERR", "value is not an integer or out of range")
}

func errNotFloat() *CmdError {
	return newErr("ERR", "value is not a valid float")
}

func errOOM() *CmdError {
	return newErr("OOM", "command not allowed when used memory > 'maxmemory'")
}

func errReadonly() *CmdError {
	return newErr("READONLY", "You can't write against a read only replica")
}

func errUnknownCommand(name string, args []string) *CmdError {
	return newErr("ERR", "unknown command '%s', with args beginning with: %s", name, firstArgPreview(args))
}

func firstArgPreview(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return "'" + args[0] + "'"
}

func errExecAbort() *CmdError {
	return newErr("EXECABORT", "Transaction discarded because of previous errors")
}

func errWatchInsideMulti() *CmdError {
	return newErr("ERR", "WATCH inside MULTI is not allowed")
}
