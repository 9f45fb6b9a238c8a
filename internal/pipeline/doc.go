// Package pipeline wires the store, queue, merge engine, external clients
// and stage handlers from one config so the daemon and the CLI run the same
// chain.
package pipeline
