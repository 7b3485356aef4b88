// Command docmilld runs the docmill document pipeline daemon and its
// administrative subcommands.
package main
