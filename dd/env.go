// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dd

import (
	"log"
	"os"
	"strconv"
)

// Environment holds the parsed GMX_DD_* variables recognised by the
// engine (spec.md §6). Every value is an optional positive int; an
// unparseable value is treated as 1 and logged, never a fatal error
// (spec.md §7 "Environment parse errors").
type Environment struct {
	SendRecv2  bool // GMX_DD_SENDRECV2: ordered two-phase instead of non-blocking
	DlbFlop    int  // GMX_DLB_FLOP: 1 = flop-based load, >1 = with (val-1)*5% jitter
	SortInterv int  // GMX_DD_SORT: CG sort interval, 0 disables
	DumpInterv int  // GMX_DD_DUMP: PDB dump interval for home+halo
	DumpGrid   int  // GMX_DD_DUMP_GRID: PDB dump interval for cell boundaries
	NpulseOvr  int  // GMX_DD_NPULSE: override auto-selected pulse count
	OrderZYX   bool // GMX_DD_ORDER_ZYX: reverse decomposition axis order
	NoCartReo  bool // GMX_NO_CART_REORDER: disable rank reordering
}

// ReadEnvironment parses the recognised environment variables.
func ReadEnvironment() (e Environment) {
	e.SendRecv2 = envBool("GMX_DD_SENDRECV2")
	e.DlbFlop = envInt("GMX_DLB_FLOP")
	e.SortInterv = envInt("GMX_DD_SORT")
	e.DumpInterv = envInt("GMX_DD_DUMP")
	e.DumpGrid = envInt("GMX_DD_DUMP_GRID")
	e.NpulseOvr = envInt("GMX_DD_NPULSE")
	e.OrderZYX = envBool("GMX_DD_ORDER_ZYX")
	e.NoCartReo = envBool("GMX_NO_CART_REORDER")
	return
}

// envInt parses an environment variable as an optional positive int;
// an unset variable yields 0, an unparseable one yields 1 with a warning.
func envInt(name string) int {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("dd: warning: cannot parse env %s=%q as int, using 1", name, v)
		return 1
	}
	return n
}

// envBool reports whether the named environment variable is set to any
// non-empty value other than "0" or "false".
func envBool(name string) bool {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" || v == "0" || v == "false" {
		return false
	}
	return true
}
