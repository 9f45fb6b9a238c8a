// Package advisory produces purchase assessments from a vehicle's attributes
// and MOT history. Without a configured model, or when the model fails, a
// deterministic templated sentence is stored instead.
package advisory
