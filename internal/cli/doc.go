// Package cli implements the devicedetect command line tool.
package cli
