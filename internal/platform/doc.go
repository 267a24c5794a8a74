// Package platform contains OS and external-process integration: supervised
// process spawning, extractor output parsing, and toolchain discovery.
package platform
