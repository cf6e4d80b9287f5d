// Package cli parses command-line arguments into the application's
// configuration and maps usage problems to exit codes.
package cli
