// Package extract derives best-effort vehicle attributes from listing text.
//
// FromListing is pure: it performs no I/O, never fails, and returns zero
// values for anything it cannot find. Sources are read in precedence order
// (title, spec tokens, description) and the first source to supply a field
// wins. The post date and listing price fill year and price last.
package extract
