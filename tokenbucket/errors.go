package tokenbucket

import "github.com/reliabilityfabric/fabric/fabriberr"

// newError wraps a fabriberr.Kind with the bucket name and operation.
func newError(service, op string, kind fabriberr.Kind) *fabriberr.Error {
	return fabriberr.New(service, op, kind, nil)
}
