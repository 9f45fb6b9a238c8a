// Package export writes the vehicle table and MOT history to an XLSX
// workbook for offline review.
package export
