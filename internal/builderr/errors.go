// Package builderr defines the error taxonomy shared by all pipeline stages.
//
// Every stage error carries the path that triggered it. The pipeline graph
// wraps stage errors in a NodeError naming the failing node, so a caller can
// bisect the DAG with errors.As on either layer.
package builderr

import (
	"errors"
	"fmt"
	"strings"
)

// ResolutionError reports a declared source directory or named external
// package that could not be located.
type ResolutionError struct {
	Name string // package or directory name
	Path string // path that was looked up, if any
	Err  error
}

func (err *ResolutionError) Error() string {
	msg := fmt.Sprintf("cannot resolve %q", err.Name)
	if err.Path != "" && err.Path != err.Name {
		msg += fmt.Sprintf(" (at %s)", err.Path)
	}
	if err.Err != nil {
		msg += ": " + err.Err.Error()
	}
	return msg
}

func (err *ResolutionError) Unwrap() error { return err.Err }

// MergeConflictError reports a path declared by more than one input of a
// strict merge. Inputs holds the indexes of the two colliding trees.
type MergeConflictError struct {
	Path   string
	Inputs [2]int
}

func (err *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict on %s between inputs %d and %d", err.Path, err.Inputs[0], err.Inputs[1])
}

// TranspileError reports a module-syntax or down-level rewrite failure.
type TranspileError struct {
	Path string
	Msg  string
	Err  error
}

func (err *TranspileError) Error() string {
	msg := "transpile " + err.Path
	if err.Msg != "" {
		msg += ": " + err.Msg
	}
	if err.Err != nil {
		msg += ": " + err.Err.Error()
	}
	return msg
}

func (err *TranspileError) Unwrap() error { return err.Err }

// CompileError reports a typed-source compilation failure.
type CompileError struct {
	Path     string
	Messages []string
	Err      error
}

func (err *CompileError) Error() string {
	msg := "compile " + err.Path
	if len(err.Messages) > 0 {
		msg += ": " + strings.Join(err.Messages, "; ")
	}
	if err.Err != nil {
		msg += ": " + err.Err.Error()
	}
	return msg
}

func (err *CompileError) Unwrap() error { return err.Err }

// NoMatchError reports a concatenation whose include patterns matched no file.
type NoMatchError struct {
	Patterns   []string
	OutputFile string
}

func (err *NoMatchError) Error() string {
	return fmt.Sprintf("no files matched %v for %s", err.Patterns, err.OutputFile)
}

// NodeError wraps the failure of a single pipeline graph node.
type NodeError struct {
	Node string
	Err  error
}

func (err *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", err.Node, err.Err)
}

func (err *NodeError) Unwrap() error { return err.Err }

// Path returns the path carried by the first stage error in err's chain, or
// the empty string.
func Path(err error) string {
	var (
		resolution *ResolutionError
		conflict   *MergeConflictError
		transpile  *TranspileError
		compile    *CompileError
		noMatch    *NoMatchError
	)
	switch {
	case errors.As(err, &resolution):
		return resolution.Path
	case errors.As(err, &conflict):
		return conflict.Path
	case errors.As(err, &transpile):
		return transpile.Path
	case errors.As(err, &compile):
		return compile.Path
	case errors.As(err, &noMatch):
		return noMatch.OutputFile
	}
	return ""
}

// Kind returns a short label for the type of stage error in err's chain,
// used as a metric label.
func Kind(err error) string {
	var (
		resolution *ResolutionError
		conflict   *MergeConflictError
		transpile  *TranspileError
		compile    *CompileError
		noMatch    *NoMatchError
	)
	switch {
	case errors.As(err, &resolution):
		return "resolution"
	case errors.As(err, &conflict):
		return "merge_conflict"
	case errors.As(err, &transpile):
		return "transpile"
	case errors.As(err, &compile):
		return "compile"
	case errors.As(err, &noMatch):
		return "no_match"
	}
	return "internal"
}
