// Package validator builds declarative validation rules.
//
// Every rule is a Rule value holding a Check func and translation-friendly
// error metadata. Apply evaluates a list of rules and aggregates failures into
// ValidationErrors, which implements error and matches ErrValidationFailed.
//
//	err := validator.Apply(
//		validator.ValidEmail("email", email),
//		validator.MinLenString("password", password, 8),
//		validator.ValidDigits("code", code, 6),
//	)
//	if errs := validator.ExtractValidationErrors(err); errs.Has("email") {
//		// ...
//	}
package validator
