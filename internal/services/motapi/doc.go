// Package motapi retrieves MOT test history for a registration.
//
// History never returns an error. Responses are mapped into Test values with
// comments partitioned into advisories and failures by their declared type.
// Offline clients synthesize a reproducible history from the registration.
package motapi
