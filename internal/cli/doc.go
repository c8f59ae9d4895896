// Package cli implements the command-line interface for precount.
//
// The cli package provides the Cobra-based CLI: "run" fetches (or reads) a results table,
// decodes it, projects the final tally and publishes both to the configured store; "decode"
// prints the region records of a saved page; "project" recomputes a projection from a stored
// record set. Output is a rounded go-pretty table or indented JSON.
package cli
