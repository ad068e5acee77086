package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusAndCode_TaxonomyError(t *testing.T) {
	err := NotFound("unknown feed")
	status, code := StatusAndCode(err)
	if status != http.StatusNotFound || code != CodeNotFound {
		t.Fatalf("got (%d, %s), want (%d, %s)", status, code, http.StatusNotFound, CodeNotFound)
	}
}

func TestStatusAndCode_WrappedError(t *testing.T) {
	err := fmt.Errorf("read page: %w", Storage("db unavailable", errors.New("disk full")))
	status, code := StatusAndCode(err)
	if status != http.StatusInternalServerError || code != CodeStorage {
		t.Fatalf("got (%d, %s), want (%d, %s)", status, code, http.StatusInternalServerError, CodeStorage)
	}
}

func TestStatusAndCode_PlainError(t *testing.T) {
	status, code := StatusAndCode(errors.New("boom"))
	if status != http.StatusInternalServerError || code != CodeInternal {
		t.Fatalf("got (%d, %s), want default (%d, %s)", status, code, http.StatusInternalServerError, CodeInternal)
	}
}

func TestError_UnwrapsCause(t *testing.T) {
	cause := errors.New("underlying")
	err := Upstream("search failed", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}
}
