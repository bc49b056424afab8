package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestRecover_WithPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "TestOperation")
		panic("test panic message")
	}

	err := testFunc()
	if err == nil {
		t.Fatal("Expected error from recovered panic, got nil")
	}

	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Expected PanicError, got %T", err)
	}
	if panicErr.Operation != "TestOperation" {
		t.Errorf("Expected operation 'TestOperation', got '%s'", panicErr.Operation)
	}
	if panicErr.Stack == "" {
		t.Error("Expected non-empty stack trace")
	}
	if panicErr.Error() != "panic in TestOperation: test panic message" {
		t.Errorf("unexpected message: %s", panicErr.Error())
	}
}

func TestRecover_WithoutPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "TestOperation")
		return nil
	}

	if err := testFunc(); err != nil {
		t.Fatalf("Expected no error when no panic occurs, got: %v", err)
	}
}

func TestRecover_WithExistingError(t *testing.T) {
	original := fmt.Errorf("original failure")
	testFunc := func() (err error) {
		defer Recover(&err, "TestOperation")
		err = original
		panic("index out of range")
	}

	err := testFunc()
	if !errors.Is(err, original) {
		t.Errorf("Expected wrapped original error, got %v", err)
	}
	if !strings.Contains(err.Error(), "index out of range") {
		t.Errorf("Expected panic value in message, got %v", err)
	}
}

func TestPanicErrorDetail(t *testing.T) {
	slice := func() (err error) {
		defer Recover(&err, "slice")
		var s []int
		_ = s[3]
		return nil
	}

	var panicErr *PanicError
	if !errors.As(slice(), &panicErr) {
		t.Fatal("Expected PanicError")
	}
	if !strings.Contains(panicErr.Detail(), "goroutine") {
		t.Error("Detail() should include the stack")
	}
}
