package errs

import (
	"fmt"
	"testing"

	"github.com/agilira/go-errors"
)

func TestCode(t *testing.T) {
	if got := Code(nil); got != "" {
		t.Errorf("Code(nil) = %q, want empty", got)
	}
	if got := Code(fmt.Errorf("plain error")); got != "" {
		t.Errorf("uncoded error gave %q, want empty", got)
	}

	err := errors.New(CodeInput, "bad source root")
	if got := Code(err); got != CodeInput {
		t.Errorf("Code = %q, want %q", got, CodeInput)
	}

	wrapped := errors.Wrap(fmt.Errorf("exit status 1"), CodeExternalTool, "compile failed")
	if got := Code(wrapped); got != CodeExternalTool {
		t.Errorf("Code = %q, want %q", got, CodeExternalTool)
	}
}
