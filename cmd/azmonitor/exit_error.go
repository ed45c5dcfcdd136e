package main

import "fmt"

// exitError carries a specific process exit code out of a command.
type exitError struct {
	code   int
	err    error
	silent bool
}

func (e *exitError) Error() string {
	if e == nil {
		return ""
	}
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit %d", e.code)
}

func (e *exitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// configError marks configuration problems, which exit with code 2.
func configError(err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: exitConfig, err: fmt.Errorf("configuration: %w", err)}
}

// reportError names the report whose one-off run failed.
type reportError struct {
	report string
	err    error
}

func (e *reportError) Error() string { return e.report + ": " + e.err.Error() }

func (e *reportError) Unwrap() error { return e.err }
