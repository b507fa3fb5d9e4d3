// Package driving defines the interfaces through which external actors
// (CLI, operator HTTP surface, scheduler) drive the core services.
package driving
