// Package mesher turns geometry scripts into discretized meshes, either by
// running the external gmsh engine or with a built-in structured grid for
// rectangular domains.
package mesher

import (
	"context"
	"errors"
	"fmt"

	"github.com/notargets/femprep/geometry"
	"github.com/notargets/femprep/mesh"
)

// Mesher discretizes a geometry script
type Mesher interface {
	Mesh(ctx context.Context, s *geometry.Script) (*mesh.Mesh, error)
}

// ErrEngineNotFound is returned when no gmsh executable can be located
var ErrEngineNotFound = errors.New("gmsh executable not found")

// EngineError is a failed or timed out engine run
type EngineError struct {
	Executable string
	ExitCode   int    // -1 when the process was killed or never exited
	Stderr     string // captured error stream
	Err        error
}

func (e *EngineError) Error() string {
	msg := fmt.Sprintf("%s failed (exit code %d): %v", e.Executable, e.ExitCode, e.Err)
	if e.Stderr != "" {
		msg += "\n" + e.Stderr
	}
	return msg
}

func (e *EngineError) Unwrap() error {
	return e.Err
}
