// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package configuration_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bitmark-inc/platformd/chain"
	"github.com/bitmark-inc/platformd/configuration"
)

const sampleConfiguration = `
local M = {}

M.data_directory = "."
M.chain = "local"

M.database = {
    directory = "state"
}

M.anchor_chain = {
    url = "http://127.0.0.1:19998",
    username = "platform",
    password = "secret"
}

M.logging = {
    size = 2097152,
    count = 5,
    console = true,
    levels = {
        DEFAULT = "info"
    }
}

return M
`

func writeConfiguration(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	fileName := filepath.Join(dir, "platformd.conf")
	if err := os.WriteFile(fileName, []byte(content), 0600); nil != err {
		t.Fatalf("write configuration error: %v", err)
	}
	return fileName
}

func TestGetConfiguration(t *testing.T) {
	fileName := writeConfiguration(t, sampleConfiguration)

	options, err := configuration.GetConfiguration(fileName)
	if nil != err {
		t.Fatalf("configuration error: %v", err)
	}

	if chain.Local != options.Chain {
		t.Fatalf("chain: %q  expected: %q", options.Chain, chain.Local)
	}
	if chain.Local+".leveldb" != options.Database.Name {
		t.Fatalf("database name: %q", options.Database.Name)
	}
	if !filepath.IsAbs(options.Database.Directory) {
		t.Fatalf("database directory not absolute: %q", options.Database.Directory)
	}
	if !filepath.IsAbs(options.Logging.Directory) {
		t.Fatalf("log directory not absolute: %q", options.Logging.Directory)
	}
	if "http://127.0.0.1:19998" != options.AnchorChain.URL {
		t.Fatalf("anchor url: %q", options.AnchorChain.URL)
	}
	if 2097152 != options.Logging.Size || 5 != options.Logging.Count {
		t.Fatalf("logging: %+v", options.Logging)
	}
	if !options.Logging.Console {
		t.Fatal("console logging not enabled")
	}
}

func TestGetConfigurationRejectsUnknownChain(t *testing.T) {
	fileName := writeConfiguration(t, `
local M = {}
M.data_directory = "."
M.chain = "nonesuch"
return M
`)

	if _, err := configuration.GetConfiguration(fileName); nil == err {
		t.Fatal("unknown chain accepted")
	}
}

func TestGetConfigurationRejectsMissingDataDirectory(t *testing.T) {
	fileName := writeConfiguration(t, `
local M = {}
M.chain = "local"
return M
`)

	if _, err := configuration.GetConfiguration(fileName); nil == err {
		t.Fatal("empty data directory accepted")
	}
}

func TestGetConfigurationUsesLua(t *testing.T) {
	// the file is executed, not just parsed
	fileName := writeConfiguration(t, `
local M = {}
M.data_directory = "."
M.chain = "lo" .. "cal"
return M
`)

	options, err := configuration.GetConfiguration(fileName)
	if nil != err {
		t.Fatalf("configuration error: %v", err)
	}
	if chain.Local != options.Chain {
		t.Fatalf("chain: %q  expected: %q", options.Chain, chain.Local)
	}
}
