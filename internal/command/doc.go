// Package command parses and executes segkv command files.
//
// A command file holds one command per line:
//
//	PUT <key> <value>
//	GET <key>
//	SCAN <key1> <key2>
//
// GET and SCAN results are written one per line. Absent keys are written as
// EMPTY.
package command
