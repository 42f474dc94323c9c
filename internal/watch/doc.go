// Package watch reports new capture files in a directory once writes to them
// have settled, feeding the watch subcommand.
package watch
