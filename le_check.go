//go:build amd64 || arm64 || 386 || arm || riscv64 || loong64 || mipsle || mips64le || ppc64le || wasm

// le_check.go - this emulator assumes a little-endian host architecture.
//
// This file compiles on known LE targets; an unlisted (big-endian) GOARCH
// simply has no matching build-tagged file and fails to build package main,
// which is the point.

package main
