package wizard

import "errors"

// Validation errors for the interactive wizard.
var (
	errPrimaryRequired = errors.New("primary host is required")
	errVersionRequired = errors.New("version is required")
	errVersionInvalid  = errors.New("version must look like 2021.7.1")
)
