// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dd

import (
	"strings"
	"testing"
)

func TestConfigErrorMessage(tst *testing.T) {
	err := &ConfigError{Msg: "grid too coarse"}
	if !strings.Contains(err.Error(), "grid too coarse") {
		tst.Errorf("expected message to carry through, got %q", err.Error())
	}
}

func TestGeometricErrorIncludesContext(tst *testing.T) {
	err := &GeometricError{Msg: "jumped too far", Step: 12, CGGlobal: 4, Axis: 'x'}
	msg := err.Error()
	if !strings.Contains(msg, "step 12") || !strings.Contains(msg, "cg 4") || !strings.Contains(msg, "jumped too far") {
		tst.Errorf("expected step/cg/message context in %q", msg)
	}
}

func TestConsistencyErrorMessage(tst *testing.T) {
	err := &ConsistencyError{Msg: "ddp_count mismatch"}
	if !strings.Contains(err.Error(), "ddp_count mismatch") {
		tst.Errorf("expected message to carry through, got %q", err.Error())
	}
}

func TestStopSerialReturnsTrueOnlyOnError(tst *testing.T) {
	g := &Global{Distr: false}
	if Stop(g, nil, "step") {
		tst.Errorf("expected no stop for a nil error in a serial run")
	}
	if !Stop(g, &ConsistencyError{Msg: "x"}, "step") {
		tst.Errorf("expected stop for a non-nil error in a serial run")
	}
}

func TestPanicOrNotSerialPanicsOnlyWhenAsked(tst *testing.T) {
	g := &Global{Distr: false}
	func() {
		defer func() {
			if r := recover(); r != nil {
				tst.Errorf("expected no panic, got %v", r)
			}
		}()
		PanicOrNot(g, false, "should not fire")
	}()

	func() {
		defer func() {
			if r := recover(); r == nil {
				tst.Errorf("expected a panic")
			}
		}()
		PanicOrNot(g, true, "should fire: %d", 42)
	}()
}
