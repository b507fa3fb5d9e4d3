// Package file loads the typed TOML configuration: sources and their
// sync intervals, embedding and index endpoints, scheduler cadence and
// the operator HTTP surface.
package file
