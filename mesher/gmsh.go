package mesher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/notargets/femprep/geometry"
	"github.com/notargets/femprep/mesh"
	"github.com/notargets/femprep/mesh/readers"
	"github.com/notargets/femprep/utils"
)

// DefaultTimeout bounds a single gmsh run
const DefaultTimeout = 5 * time.Minute

// Gmsh meshes scripts by running `gmsh <geo> -2 -o <msh>`
type Gmsh struct {
	Executable string        // empty: FindGmsh
	WorkDir    string        // directory for the .geo and .msh files; empty: a temporary directory
	Timeout    time.Duration // zero: DefaultTimeout
	Logger     *slog.Logger
}

// FindGmsh looks for gmsh in the working directory, then on PATH
func FindGmsh() (string, error) {
	local := []string{"gmsh"}
	if runtime.GOOS == "windows" {
		local = []string{"gmsh.exe", "gmsh"}
	}
	for _, name := range local {
		path := filepath.Join(".", name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return filepath.Abs(path)
		}
	}
	path, err := exec.LookPath("gmsh")
	if err != nil {
		return "", fmt.Errorf("%w: install gmsh or place it in the working directory", ErrEngineNotFound)
	}
	return path, nil
}

// Mesh writes the script next to the mesh file, runs gmsh and parses its output.
// No retry is attempted.
func (g *Gmsh) Mesh(ctx context.Context, s *geometry.Script) (*mesh.Mesh, error) {
	logger := utils.OrDefault(g.Logger)

	exe := g.Executable
	if exe == "" {
		var err error
		if exe, err = FindGmsh(); err != nil {
			return nil, err
		}
	} else if _, err := exec.LookPath(exe); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrEngineNotFound, exe)
	}

	dir := g.WorkDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "femprep-gmsh-")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	name := s.ModelName
	if name == "" {
		name = "model"
	}
	geoPath := filepath.Join(dir, name+".geo")
	mshPath := filepath.Join(dir, name+".msh")
	if err := os.WriteFile(geoPath, []byte(s.Text()), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write geometry script: %w", err)
	}

	start := time.Now()
	if err := g.run(ctx, exe, geoPath, mshPath); err != nil {
		return nil, err
	}
	logger.Debug("gmsh finished", "executable", exe, "geo", geoPath, "msh", mshPath,
		"elapsed", time.Since(start))

	return readers.ReadMeshFile(mshPath)
}

func (g *Gmsh) run(ctx context.Context, exe, geoPath, mshPath string) error {
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, exe, geoPath, "-2", "-o", mshPath)
	cmd.WaitDelay = time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	engineErr := &EngineError{
		Executable: exe,
		ExitCode:   -1,
		Stderr:     strings.TrimSpace(stderr.String()),
		Err:        err,
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		engineErr.Err = ctxErr
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			engineErr.Err = fmt.Errorf("timed out after %v: %w", timeout, ctxErr)
		}
		return engineErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		engineErr.ExitCode = exitErr.ExitCode()
	}
	return engineErr
}
