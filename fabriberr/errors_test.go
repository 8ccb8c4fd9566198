package fabriberr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/reliabilityfabric/fabric/fabriberr"
)

func TestError_Is_Sentinel(t *testing.T) {
	cause := errors.New("boom")
	err := fabriberr.New("billing", "execute", fabriberr.KindCircuitOpen, cause)

	if !errors.Is(err, fabriberr.ErrCircuitOpen) {
		t.Fatal("expected errors.Is to match ErrCircuitOpen")
	}
	if errors.Is(err, fabriberr.ErrTimeout) {
		t.Fatal("did not expect errors.Is to match ErrTimeout")
	}
}

func TestError_Is_OtherError(t *testing.T) {
	err := fabriberr.New("billing", "execute", fabriberr.KindBulkheadFull, nil)
	same := fabriberr.New("inventory", "try_consume", fabriberr.KindBulkheadFull, nil)
	diff := fabriberr.New("billing", "execute", fabriberr.KindTimeout, nil)

	if !errors.Is(err, same) {
		t.Fatal("expected errors.Is to match another *Error with the same Kind")
	}
	if errors.Is(err, diff) {
		t.Fatal("did not expect errors.Is to match a different Kind")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := fabriberr.New("billing", "execute", fabriberr.KindTimeout, cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}
}

func TestKindOf(t *testing.T) {
	err := fabriberr.New("billing", "execute", fabriberr.KindRetryExhausted, nil)

	kind, ok := fabriberr.KindOf(err)
	if !ok || kind != fabriberr.KindRetryExhausted {
		t.Fatalf("KindOf() = (%q, %v), want (%q, true)", kind, ok, fabriberr.KindRetryExhausted)
	}

	if _, ok := fabriberr.KindOf(errors.New("plain")); ok {
		t.Fatal("expected KindOf to report false for a non-fabric error")
	}
}

func TestError_ErrorString(t *testing.T) {
	withCause := fabriberr.New("billing", "execute", fabriberr.KindCircuitOpen, errors.New("upstream down"))
	withoutCause := fabriberr.New("billing", "execute", fabriberr.KindCircuitOpen, nil)

	if withCause.Error() == withoutCause.Error() {
		t.Fatal("expected wrapped cause to change the error string")
	}
}

func ExampleNew() {
	err := fabriberr.New("payments", "execute", fabriberr.KindCircuitOpen, nil)
	fmt.Println(err)
	fmt.Println(errors.Is(err, fabriberr.ErrCircuitOpen))
	// Output:
	// fabric: payments: execute[CIRCUIT_OPEN]
	// true
}
