// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/getoptions"
	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/platformd/anchorchain"
	"github.com/bitmark-inc/platformd/configuration"
	"github.com/bitmark-inc/platformd/drive"
	"github.com/bitmark-inc/platformd/mode"
	"github.com/bitmark-inc/platformd/platform"
	"github.com/bitmark-inc/platformd/storage"
	"github.com/bitmark-inc/platformd/validator"
)

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

// main program
func main() {
	// ensure exit handler is first
	defer exitwithstatus.Handler()

	flags := []getoptions.Option{
		{Long: "help", HasArg: getoptions.NO_ARGUMENT, Short: 'h'},
		{Long: "verbose", HasArg: getoptions.NO_ARGUMENT, Short: 'v'},
		{Long: "quiet", HasArg: getoptions.NO_ARGUMENT, Short: 'q'},
		{Long: "version", HasArg: getoptions.NO_ARGUMENT, Short: 'V'},
		{Long: "config-file", HasArg: getoptions.REQUIRED_ARGUMENT, Short: 'c'},
	}

	program, options, arguments, err := getoptions.GetOS(flags)
	if nil != err {
		exitwithstatus.Message("%s: getoptions error: %s", program, err)
	}

	if len(options["version"]) > 0 {
		processSetupCommand(program, []string{"version"})
		return
	}

	if len(options["help"]) > 0 {
		processSetupCommand(program, []string{"help"})
		return
	}

	// these commands do not require the configuration
	if len(arguments) > 0 && processSetupCommand(program, arguments) {
		return
	}

	if 1 != len(options["config-file"]) {
		exitwithstatus.Message("%s: only one config-file option is required, %d were detected", program, len(options["config-file"]))
	}

	// read options and parse the configuration file
	configurationFile := options["config-file"][0]
	theConfiguration, err := configuration.GetConfiguration(configurationFile)
	if nil != err {
		exitwithstatus.Message("%s: failed to read configuration from: %q  error: %s", program, configurationFile, err)
	}

	// start logging
	if err = logger.Initialise(theConfiguration.Logging); nil != err {
		exitwithstatus.Message("%s: logger setup failed with error: %s", program, err)
	}
	defer logger.Finalise()

	// create a logger channel for the main program
	log := logger.New("main")
	defer log.Info("finished")
	log.Info("starting…")
	log.Infof("version: %s", version)

	// ------------------
	// start of real main
	// ------------------

	// optional PID file
	// use if not running under a supervisor program like daemon(8)
	if "" != theConfiguration.PidFile {
		lockFile, err := os.OpenFile(theConfiguration.PidFile, os.O_WRONLY|os.O_EXCL|os.O_CREATE, os.ModeExclusive|0600)
		if err != nil {
			if os.IsExist(err) {
				exitwithstatus.Message("%s: another instance is already running", program)
			}
			exitwithstatus.Message("%s: PID file: %q creation failed, error: %s", program, theConfiguration.PidFile, err)
		}
		fmt.Fprintf(lockFile, "%d\n", os.Getpid())
		lockFile.Close()
		defer os.Remove(theConfiguration.PidFile)
	}

	// set the initial block lifecycle state - before anything that
	// can touch the store
	err = mode.Initialise(theConfiguration.Chain)
	if nil != err {
		log.Criticalf("mode initialise error: %s", err)
		exitwithstatus.Message("mode initialise error: %s", err)
	}
	defer mode.Finalise()

	// general info
	log.Infof("test mode: %v", mode.IsTesting())
	log.Infof("database: %v", theConfiguration.Database)

	// start the data storage
	log.Info("initialise storage")
	err = storage.Initialise(filepath.Join(theConfiguration.Database.Directory, theConfiguration.Database.Name))
	if nil != err {
		log.Criticalf("storage initialise error: %s", err)
		exitwithstatus.Message("storage initialise error: %s", err)
	}
	defer storage.Finalise()

	// the authenticated store
	log.Info("initialise drive")
	err = drive.Initialise()
	if nil != err {
		log.Criticalf("drive initialise error: %s", err)
		exitwithstatus.Message("drive initialise error: %s", err)
	}
	defer drive.Finalise()

	// anchor chain access, optional for nodes that never follow
	// masternode changes
	var anchor anchorchain.Client
	if "" != theConfiguration.AnchorChain.URL {
		log.Infof("anchor chain daemon: %s", theConfiguration.AnchorChain.URL)
		rpcClient, err := anchorchain.NewRPCClient(
			theConfiguration.AnchorChain.URL,
			theConfiguration.AnchorChain.Username,
			theConfiguration.AnchorChain.Password,
			theConfiguration.AnchorChain.CACertificate,
		)
		if nil != err {
			log.Criticalf("anchor client error: %s", err)
			exitwithstatus.Message("anchor client error: %s", err)
		}
		anchor = anchorchain.NewLimited(rpcClient)
	}

	// TODO: bind a production BLS threshold verifier once one is
	// linked in; the digest verifier only suits local test chains
	var bls validator.BLSVerifier = validator.DigestBLS{}

	// the block lifecycle coordinator; the consensus engine drives
	// it through the platform package surface
	log.Info("initialise platform")
	err = platform.Initialise(theConfiguration.Chain, anchor, bls)
	if nil != err {
		log.Criticalf("platform initialise error: %s", err)
		exitwithstatus.Message("platform initialise error: %s", err)
	}
	defer platform.Finalise()

	// wait for CTRL-C before shutting down to allow manual testing
	if 0 == len(options["quiet"]) {
		fmt.Printf("waiting for CTRL-C (SIGINT) or 'kill %d' (SIGTERM)…", os.Getpid())
	}

	// turn Signals into channel messages
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	sig := <-ch
	log.Infof("received signal: %v", sig)
	if 0 == len(options["quiet"]) {
		fmt.Printf("\nreceived signal: %v\n", sig)
		fmt.Printf("\nshutting down…\n")
	}
}
