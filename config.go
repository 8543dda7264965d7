// config.go - ambient build-wide constants.
package main

// Version is the emulator's release string, bumped by hand per release.
const Version = "0.1.0"

func init() {
	compiledFeatures = append(compiledFeatures,
		"riscv32-zicsr",
		"lua-scripting",
	)
}
