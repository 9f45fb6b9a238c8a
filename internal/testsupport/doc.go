// Package testsupport holds fixtures shared by package tests: temp-dir
// configs, store handles with cleanup, and listing builders.
package testsupport
