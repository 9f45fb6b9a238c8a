// Package textutil provides text helpers shared by extraction, the register
// clients and the CLI: registration sanitizing, title casing of register
// values, word splitting, and filesystem-safe tokens.
package textutil
