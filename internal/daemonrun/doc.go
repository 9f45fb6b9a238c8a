// Package daemonrun wires configuration, logging, the enrichment pipeline and
// the daemon lock together for the foreground `carprobe daemon` process.
package daemonrun
