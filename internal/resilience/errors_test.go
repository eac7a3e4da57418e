package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

func TestIsTransient_NilError(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
}

func TestIsTransient_RegularError(t *testing.T) {
	if IsTransient(errors.New("snapshot: vendors is missing required columns: tax_id")) {
		t.Error("regular error should not be transient")
	}
}

func TestIsTransient_PgErrorCodes(t *testing.T) {
	for code, want := range map[string]bool{
		"40001": true,
		"40P01": true,
		"57P03": true,
		"08006": true,
		"23505": false, // unique_violation
		"42P01": false, // undefined_table
		"22P02": false, // invalid_text_representation
	} {
		err := &pgconn.PgError{Code: code}
		if got := IsTransient(err); got != want {
			t.Errorf("code %s: expected %v, got %v", code, want, got)
		}
	}
}

func TestIsTransient_WrappedPgError(t *testing.T) {
	err := eris.Wrap(&pgconn.PgError{Code: "40P01"}, "store: publish")
	if !IsTransient(err) {
		t.Error("expected wrapped deadlock to be transient")
	}
}

func TestIsTransient_ConnectionErrors(t *testing.T) {
	for _, errno := range []syscall.Errno{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED} {
		if !IsTransient(fmt.Errorf("dial tcp: %w", errno)) {
			t.Errorf("%v should be transient", errno)
		}
	}
}

func TestIsTransient_NetworkTimeout(t *testing.T) {
	if !IsTransient(&net.DNSError{IsTimeout: true, Err: "timeout"}) {
		t.Error("network timeout should be transient")
	}
}

func TestIsTransient_StringPatterns(t *testing.T) {
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"read: i/o timeout",
		"conn closed",
	} {
		if !IsTransient(errors.New(p)) {
			t.Errorf("expected %q to be transient", p)
		}
	}
}
