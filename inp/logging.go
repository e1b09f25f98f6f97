// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package inp implements the input configuration read from a (.dd) JSON file
// describing the spatial domain decomposition of a run.
package inp

import (
	"log"
	"os"

	"github.com/cpmech/gosl/mpi"
	"github.com/cpmech/gosl/utl"
)

// logFile holds a handle to this rank's logger file
var logFile *os.File

// InitLogFile initialises the per-rank logger
func InitLogFile(dirout, fnamekey string) (err error) {
	var rank int
	if mpi.IsOn() {
		rank = mpi.Rank()
	}
	logFile, err = os.Create(utl.Sf("%s/%s_p%d.log", dirout, fnamekey, rank))
	if err != nil {
		return
	}
	log.SetOutput(logFile)
	return
}

// FlushLog closes the logger file, flushing it to disk
func FlushLog() {
	if logFile != nil {
		logFile.Close()
	}
}

// LogErr logs an error and returns the stop flag
func LogErr(err error, msg string) (stop bool) {
	if err != nil {
		log.Printf("ERROR: %s : %v", msg, err)
		return true
	}
	return false
}

// LogErrCond logs an error built from a condition and returns the stop flag
func LogErrCond(condition bool, msg string, prm ...interface{}) (stop bool) {
	if condition {
		log.Printf("ERROR: %s", utl.Sf(msg, prm...))
		return true
	}
	return false
}
