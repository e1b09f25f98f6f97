// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package inp

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestSetDefaultFillsPbcAndDlb(tst *testing.T) {
	var cfg Config
	cfg.SetDefault()
	if !cfg.PbcX || !cfg.PbcY || !cfg.PbcZ {
		tst.Errorf("expected periodic boundaries on by default")
	}
	if cfg.DlbMode != "auto" {
		tst.Errorf("expected dlbMode=auto by default, got %q", cfg.DlbMode)
	}
	if cfg.NpmeHint != -1 {
		tst.Errorf("expected npmeHint=-1 (auto-guess) by default, got %d", cfg.NpmeHint)
	}
}

func TestPostProcessFillsCutoffMBodyFromCutoff(tst *testing.T) {
	dir, err := os.MkdirTemp("", "dd-config-test")
	if err != nil {
		tst.Fatalf("MkdirTemp failed: %v", err)
	}
	defer os.RemoveAll(dir)

	var cfg Config
	cfg.SetDefault()
	cfg.Cutoff = 1.2
	cfg.DirOut = filepath.Join(dir, "out")
	cfg.PostProcess(dir, "run.json")

	if cfg.CutoffMBody != cfg.Cutoff {
		tst.Errorf("expected cutoffMBody to default to cutoff, got %g vs %g", cfg.CutoffMBody, cfg.Cutoff)
	}
	if _, err := os.Stat(cfg.DirOut); err != nil {
		tst.Errorf("expected output directory to be created: %v", err)
	}
}

func TestPostProcessPanicsOnNonPositiveCutoff(tst *testing.T) {
	dir, err := os.MkdirTemp("", "dd-config-test")
	if err != nil {
		tst.Fatalf("MkdirTemp failed: %v", err)
	}
	defer os.RemoveAll(dir)

	defer func() {
		if r := recover(); r == nil {
			tst.Errorf("expected a panic for a non-positive cutoff")
		}
	}()
	var cfg Config
	cfg.SetDefault()
	cfg.DirOut = filepath.Join(dir, "out")
	cfg.PostProcess(dir, "run.json")
}

func TestPostProcessPanicsOnBadDlbMode(tst *testing.T) {
	dir, err := os.MkdirTemp("", "dd-config-test")
	if err != nil {
		tst.Fatalf("MkdirTemp failed: %v", err)
	}
	defer os.RemoveAll(dir)

	defer func() {
		if r := recover(); r == nil {
			tst.Errorf("expected a panic for an invalid dlbMode")
		}
	}()
	var cfg Config
	cfg.SetDefault()
	cfg.Cutoff = 1.0
	cfg.DlbMode = "sometimes"
	cfg.DirOut = filepath.Join(dir, "out")
	cfg.PostProcess(dir, "run.json")
}

func TestReadConfigRoundTrip(tst *testing.T) {
	dir, err := os.MkdirTemp("", "dd-config-test")
	if err != nil {
		tst.Fatalf("MkdirTemp failed: %v", err)
	}
	defer os.RemoveAll(dir)

	raw := Config{
		Cutoff:      1.0,
		CutoffMBody: 1.5,
		Grid:        GridData{Nx: 2, Ny: 2, Nz: 2},
		DlbMode:     "auto",
	}
	raw.Box.Row = [3][3]float64{{10, 0, 0}, {0, 10, 0}, {0, 0, 10}}
	b, err := json.Marshal(&raw)
	if err != nil {
		tst.Fatalf("Marshal failed: %v", err)
	}
	fn := filepath.Join(dir, "run.json")
	if err := os.WriteFile(fn, b, 0644); err != nil {
		tst.Fatalf("WriteFile failed: %v", err)
	}

	cfg := ReadConfig(fn)
	if cfg.Cutoff != 1.0 || cfg.CutoffMBody != 1.5 {
		tst.Errorf("expected cutoffs to round trip, got %g/%g", cfg.Cutoff, cfg.CutoffMBody)
	}
	if cfg.Grid.Nx != 2 {
		tst.Errorf("expected grid.nx to round trip, got %d", cfg.Grid.Nx)
	}
	if cfg.DirOut == "" {
		tst.Errorf("expected PostProcess to have filled DirOut")
	}
}
