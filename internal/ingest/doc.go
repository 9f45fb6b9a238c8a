// Package ingest accepts scraper listing documents, validates them against
// an embedded JSON schema, and saves them through the merge engine so every
// listing has a vehicle before any asynchronous enrichment runs.
package ingest
