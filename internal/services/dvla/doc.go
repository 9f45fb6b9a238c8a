// Package dvla looks up authoritative register records from the DVLA Vehicle
// Enquiry Service.
//
// Lookup never returns an error: 404s, non-2xx responses and malformed bodies
// are logged and reported as no data. When the client is offline (no API key
// or a non-production environment) records are synthesized deterministically
// from the registration instead.
package dvla
