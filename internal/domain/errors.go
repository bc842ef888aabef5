package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionActive is returned when a target already has a running session.
	ErrSessionActive = errors.New("a run session is already active for this binary")
	// ErrMultiTargetDebug is returned when a debug selection spans more than one binary.
	ErrMultiTargetDebug = errors.New("debugging tests from more than one binary at once is not supported")
	// ErrNoDebugProfile is returned when a target has no debug launch profile configured.
	ErrNoDebugProfile = errors.New("no debug launch profile configured for this binary")
	// ErrEmptySelection is returned when a selection resolves to nothing.
	ErrEmptySelection = errors.New("selection does not match any test")
	// ErrDiscoveryFailed is returned when a binary's test tree is the discovery-error tree.
	ErrDiscoveryFailed = errors.New("test discovery failed for this binary")
)

// BinaryLaunchError is returned when a test binary could not be started.
type BinaryLaunchError struct {
	Path string
	Err  error
}

func (e *BinaryLaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.Path, e.Err)
}

func (e *BinaryLaunchError) Unwrap() error { return e.Err }

// DiscoveryFormatError is returned when discovery output is not a usable graph.
type DiscoveryFormatError struct {
	Reason string
	Err    error
}

func (e *DiscoveryFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid discovery output: %s: %v", e.Reason, e.Err)
	}
	return "invalid discovery output: " + e.Reason
}

func (e *DiscoveryFormatError) Unwrap() error { return e.Err }

// MalformedGraphError is returned when the discovery graph is not a single rooted tree.
type MalformedGraphError struct {
	Reason string
}

func (e *MalformedGraphError) Error() string {
	return "malformed test graph: " + e.Reason
}

// LabelFormatError is returned when a node label matches none of the known grammars.
type LabelFormatError struct {
	Label string
}

func (e *LabelFormatError) Error() string {
	return fmt.Sprintf("unrecognized test label %q", e.Label)
}

// ProfileNotFoundError is returned when a named debug launch profile does not exist.
type ProfileNotFoundError struct {
	Name string
	File string
}

func (e *ProfileNotFoundError) Error() string {
	return fmt.Sprintf("debug launch profile %q not found in %s", e.Name, e.File)
}
