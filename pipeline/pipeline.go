// Package pipeline runs the whole preprocessing chain for one model:
// geometry script, meshing, conversion to solver arrays and the solver files.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/davecgh/go-spew/spew"

	"github.com/notargets/femprep/config"
	"github.com/notargets/femprep/converter"
	"github.com/notargets/femprep/geometry"
	"github.com/notargets/femprep/mesh"
	"github.com/notargets/femprep/mesher"
	"github.com/notargets/femprep/solverio"
	"github.com/notargets/femprep/utils"
)

// dumpConfig prints struct fields instead of String() summaries
var dumpConfig = &spew.ConfigState{Indent: "  ", DisableMethods: true}

// DefaultOutputDir is used when New is given an empty directory
const DefaultOutputDir = "./output"

// Option customises a Pipeline
type Option func(*Pipeline)

// WithMesher replaces the gmsh engine
func WithMesher(m mesher.Mesher) Option {
	return func(p *Pipeline) {
		p.mesher = m
	}
}

// WithLogger sets the logger of every stage
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithPrefix prepends prefix to the solver file names
func WithPrefix(prefix string) Option {
	return func(p *Pipeline) {
		p.prefix = prefix
	}
}

// Pipeline converts a validated model into solver input files in an output directory
type Pipeline struct {
	model     *config.Model
	outputDir string
	prefix    string
	mesher    mesher.Mesher
	logger    *slog.Logger
}

// Result holds the products of a run
type Result struct {
	GeoFile string
	Script  *geometry.Script
	Mesh    *mesh.Mesh
	Arrays  *converter.Arrays
	Files   []string // solver files, in write order
}

// New builds a pipeline for model. Without WithMesher the gmsh engine is
// run in outputDir, leaving the .msh file next to the results.
func New(model *config.Model, outputDir string, options ...Option) *Pipeline {
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}
	p := &Pipeline{model: model, outputDir: outputDir}
	for _, opt := range options {
		if opt != nil {
			opt(p)
		}
	}
	p.logger = utils.OrDefault(p.logger)
	if p.mesher == nil {
		p.mesher = &mesher.Gmsh{WorkDir: outputDir, Logger: p.logger}
	}
	return p
}

// Run validates the model, then executes the four stages in order and
// stops at the first failure
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if p.model == nil {
		return nil, errors.New("no model to convert")
	}
	logger := p.logger.With("model", p.model.ModelName)
	logger.Info("starting conversion", "output_dir", p.outputDir, "summary", p.model.String())
	if logger.Enabled(ctx, slog.LevelDebug) {
		logger.Debug("model", "dump", dumpConfig.Sdump(p.model))
	}
	if err := p.model.Validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	res := &Result{GeoFile: filepath.Join(p.outputDir, p.model.ModelName+".geo")}

	var err error
	logger.Info("[1/4] generating geometry script")
	if res.Script, err = (geometry.Generator{Logger: logger}).Generate(p.model); err != nil {
		return nil, fmt.Errorf("generate geometry: %w", err)
	}
	if err = os.WriteFile(res.GeoFile, []byte(res.Script.Text()), 0o644); err != nil {
		return nil, fmt.Errorf("generate geometry: %w", err)
	}
	logger.Info("created", "file", res.GeoFile, "points", len(res.Script.Points), "curves", len(res.Script.Curves))

	logger.Info("[2/4] meshing")
	if res.Mesh, err = p.mesher.Mesh(ctx, res.Script); err != nil {
		return nil, fmt.Errorf("mesh: %w", err)
	}
	logger.Info("meshed", "nodes", res.Mesh.NumPoints(), "blocks", len(res.Mesh.Blocks))
	logger.Debug("mesh summary", "summary", res.Mesh.String())

	logger.Info("[3/4] converting to solver arrays")
	if res.Arrays, err = converter.Convert(res.Mesh, p.model); err != nil {
		return nil, fmt.Errorf("convert: %w", err)
	}
	attrs := []any{"nodes", res.Mesh.NumPoints(), "elements", len(res.Arrays.Elements)}
	if res.Arrays.Loads != nil {
		n, _ := res.Arrays.Loads.Dims()
		attrs = append(attrs, "loads", n)
	}
	logger.Info("converted", attrs...)

	logger.Info("[4/4] saving solver files")
	if res.Files, err = solverio.Write(p.outputDir, p.prefix, res.Arrays); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	logger.Info("conversion complete", "files", res.Files)
	return res, nil
}
