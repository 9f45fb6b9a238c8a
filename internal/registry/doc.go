// Package registry implements the register lookup stage. It runs once per
// vehicle with a known registration and writes only register-owned fields.
package registry
