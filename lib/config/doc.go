// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the YAML configuration shared by dlt-receive and
// dlt-control.
//
// A file is read only when named explicitly: by the DLT_CONFIG
// environment variable (via [Load]) or a --config flag (via
// [LoadFile]). Without either, commands start from [Default] and their
// flags. There is no search path.
//
// A file can define named profiles that override base values:
//
//	transport:
//	  host: 192.168.7.2
//	output:
//	  format: mixed
//	profiles:
//	  bench:
//	    transport:
//	      mode: serial
//	      serial_device: /dev/ttyUSB0
//	    client:
//	      sync: marker
//	      resync: true
//
// The profile is chosen by the file's profile key or the --profile
// flag. After the profile is applied, ${VAR} and ${VAR:-default}
// patterns in path and URL fields are expanded from the environment.
// No other environment variable overrides a file value.
package config
