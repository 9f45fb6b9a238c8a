// Package vision reads registration plates from listing photos and merges
// confident reads into the listing's vehicle.
//
// The recognizer sends one image at a time and stops at the first plate.
// Clean reads score 0.9 and partial reads (with ?) score 0.5. Partial plates
// are stored as provenance only and never become a registration.
package vision
