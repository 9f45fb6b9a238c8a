// Package merge decides which vehicle a listing's registration belongs to and
// writes the result.
//
// Decide is a pure function over the listing's current vehicle and the
// vehicles already carrying the registration:
//
//   - attach: the listing's own vehicle, or an unattached vehicle with the
//     registration, is updated in place
//   - fork: the registration is owned by another listing (or differs from the
//     listing's current one), so a new independent vehicle is created
//   - create_new: nothing matches
//
// Engine.Apply executes the decision through store.SaveVehicle, the single
// vehicle write path. A vehicle owned by another listing is never modified.
package merge
