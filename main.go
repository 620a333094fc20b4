// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// xbuscope - Xbus IMU Protocol Analyzer
//
// A CLI tool for monitoring, capturing and sending Xbus messages.

package main

import (
	"os"

	"github.com/Thermoquad/xbuscope/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
