// Package history implements the MOT history stage. A vehicle's history is
// fetched at most once; the batch and the history marker are written in one
// transaction.
package history
