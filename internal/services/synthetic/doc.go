// Package synthetic generates reproducible register and MOT history data for
// offline runs. Output depends only on the sanitized registration and the
// reference date, so repeated lookups of the same plate agree.
package synthetic
