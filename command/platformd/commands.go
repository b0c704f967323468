// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/bitmark-inc/exitwithstatus"

	"github.com/bitmark-inc/platformd/chain"
	"github.com/bitmark-inc/platformd/genesis"
)

// setup commands that run without the configuration file
// returns true if a command was handled
func processSetupCommand(program string, arguments []string) bool {

	command := arguments[0]

	switch command {
	case "version":
		fmt.Println(version)

	case "genesis", "genesis-block":
		for _, chainName := range []string{chain.Platform, chain.Testing, chain.Local} {
			block, ok := genesis.Get(chainName)
			if !ok {
				exitwithstatus.Message("%s: no genesis block for chain: %q", program, chainName)
			}
			fmt.Printf("chain: %s\n", chainName)
			fmt.Printf("  chain id:         %s\n", block.ChainID)
			fmt.Printf("  time:             %d\n", block.Time)
			fmt.Printf("  protocol version: %d\n", block.ProtocolVersion)
			fmt.Printf("  core height:      %d\n", block.CoreHeight)
		}

	case "help", "h", "?":
		fmt.Printf("usage: %s [options] [command]\n", program)
		fmt.Println("options:")
		fmt.Println("  --help             -h       this message")
		fmt.Println("  --verbose          -v      more logging")
		fmt.Println("  --quiet            -q      less console output")
		fmt.Println("  --version          -V      show version")
		fmt.Println("  --config-file=FILE -c FILE *configuration file")
		fmt.Println("commands:")
		fmt.Println("  version            show version")
		fmt.Println("  genesis            show the compiled-in genesis blocks")

	default:
		// not a setup command; continue to the daemon
		return false
	}

	return true
}
