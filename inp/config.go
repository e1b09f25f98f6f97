// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package inp

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
)

// BoxData holds the (possibly triclinic) simulation box as a lower
// triangular matrix, row-major: Row[d] has zero entries for columns > d.
type BoxData struct {
	Row [3][3]float64 `json:"row"` // box vectors, Row[j][i]=0 for i>j
}

// GridData holds the user's requested decomposition grid; zero entries
// mean "let the Topology Map choose".
type GridData struct {
	Nx int `json:"nx"`
	Ny int `json:"ny"`
	Nz int `json:"nz"`
}

// SlbData holds optional user-specified static cell-size fractions per
// axis; an empty Fracs slice means uniform cells.
type SlbData struct {
	FracsX []float64 `json:"fracsX"`
	FracsY []float64 `json:"fracsY"`
	FracsZ []float64 `json:"fracsZ"`
}

// Config holds all data needed to initialise the domain decomposition
// engine. It is the DD analogue of inp.Data/inp.SolverData in the FEM
// parent project.
type Config struct {

	// global information
	Desc    string `json:"desc"`    // description of this run
	DirOut  string `json:"dirout"`  // directory for logs / dumps
	Encoder string `json:"encoder"` // "json" or "gob" for checkpoint state

	// box and periodicity
	Box      BoxData `json:"box"`
	Triclin  bool    `json:"triclinic"`
	PbcX     bool    `json:"pbcX"`
	PbcY     bool    `json:"pbcY"`
	PbcZ     bool    `json:"pbcZ"`

	// decomposition grid
	Grid GridData `json:"grid"` // zero => auto-optimise
	Slb  SlbData  `json:"slb"`  // zero-length => uniform

	// ranks / PME split
	NpmeHint int `json:"npmeHint"` // -1 => auto-guess

	// cutoffs
	Cutoff       float64 `json:"cutoff"`
	CutoffMBody  float64 `json:"cutoffMBody"`
	CellSizeLim  float64 `json:"cellSizeLimit"`

	// dynamic load balancing
	DlbMode  string  `json:"dlbMode"` // "auto", "yes", "no"
	DlbScale float64 `json:"dlbScale"`

	// overrides (mirror the GMX_DD_* environment variables of spec.md §6,
	// but as explicit config so a run is reproducible without env state)
	SortInterval  int  `json:"sortInterval"`  // 0 => use engine default
	NpulseOverride int `json:"npulseOverride"` // 0 => auto-select
	AxisOrderZYX  bool `json:"axisOrderZYX"`

	// derived (computed by PostProcess, not read from JSON)
	FnameDir string `json:"-"`
	FnameKey string `json:"-"`
}

// SetDefault sets default values for fields the user may have omitted
func (o *Config) SetDefault() {
	o.Encoder = "json"
	o.PbcX, o.PbcY, o.PbcZ = true, true, true
	o.NpmeHint = -1
	o.CellSizeLim = 0
	o.DlbMode = "auto"
	o.DlbScale = 0.8
}

// PostProcess performs post-processing / validation of the just-read config
func (o *Config) PostProcess(dir, fn string) {
	o.FnameDir = os.ExpandEnv(dir)
	o.FnameKey = io.FnKey(fn)
	if o.DirOut == "" {
		o.DirOut = "/tmp/dd/" + o.FnameKey
	}
	if o.Encoder != "gob" && o.Encoder != "json" {
		o.Encoder = "json"
	}
	err := os.MkdirAll(o.DirOut, 0777)
	if err != nil {
		chk.Panic("cannot create output directory (%s): %v", o.DirOut, err)
	}
	if o.Cutoff <= 0 {
		chk.Panic("cutoff must be positive (got %g)", o.Cutoff)
	}
	if o.CutoffMBody <= 0 {
		o.CutoffMBody = o.Cutoff
	}
	if o.DlbMode != "auto" && o.DlbMode != "yes" && o.DlbMode != "no" {
		chk.Panic("dlbMode must be one of auto|yes|no (got %q)", o.DlbMode)
	}
}

// ReadConfig reads, validates and post-processes a DD configuration file
func ReadConfig(fnpath string) (o *Config) {
	o = new(Config)
	o.SetDefault()
	b, err := os.ReadFile(fnpath)
	if err != nil {
		chk.Panic("cannot read configuration file %q: %v", fnpath, err)
	}
	err = json.Unmarshal(b, o)
	if err != nil {
		chk.Panic("cannot parse configuration file %q: %v", fnpath, err)
	}
	o.PostProcess(filepath.Dir(fnpath), filepath.Base(fnpath))
	return
}
