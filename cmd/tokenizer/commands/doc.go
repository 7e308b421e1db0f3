// Package commands defines the tokenizer CLI.
//
// Commands
//
//   - compose   Stack images onto a square canvas and write a PNG
//   - resolve   Print the next free wildcard token filename in a directory
//   - slug      Print the filename slug of actor names
//
// Image arguments are local paths or http(s) URLs.
package commands
