// Package services contains the core application logic. Services sit
// between driving adapters (CLI, ops endpoints, scheduler) and driven
// adapters (source clients, embedding, vector index, storage) and
// implement the driving port interfaces.
package services
