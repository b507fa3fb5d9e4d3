// Package memory provides in-memory implementations of the driven ports.
// They are used by service tests and by offline mode; none of them
// survive a process restart.
package memory
