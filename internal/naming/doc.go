// Package naming derives target filenames for uploaded portraits and tokens.
//
// Fixed names follow "<slug>.<Suffix>.png". Wildcard tokens use a template
// with a "*" placeholder that is filled with a three digit index; Resolve
// picks the lowest index whose file does not exist yet.
package naming
