// Package fabriberr defines the boundary error kinds shared by every
// reliability fabric component.
//
// Every admission, isolation, or policy rejection surfaces as an *Error
// carrying the service name, a stable Kind, and the underlying cause (if
// any). Callers check kinds with errors.Is against the package-level Kind
// sentinels, mirroring the health package's own sentinel-error
// convention but scoped per-service.
package fabriberr
