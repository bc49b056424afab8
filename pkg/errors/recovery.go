package errors

import (
	"fmt"
	"runtime/debug"
)

// PanicError は recover した panic を包むエラー
type PanicError struct {
	Operation  string
	PanicValue any
	Stack      string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// Detail は panic 発生時のスタックを含めた文字列を返す
func (e *PanicError) Detail() string {
	return e.Error() + "\n" + e.Stack
}

// NewPanicError は現在のゴルーチンのスタックを添えて PanicError を作る
func NewPanicError(operation string, value any) *PanicError {
	return &PanicError{Operation: operation, PanicValue: value, Stack: string(debug.Stack())}
}

// Recover は defer で呼び、panic を名前付き戻り値のエラーに変換する
//
//	func (r *Regressor) Fit(...) (err error) {
//	    defer errors.Recover(&err, "gbdt.Fit")
//	    ...
//	}
//
// すでにエラーが入っている場合はそれを包んで残す。
func Recover(err *error, operation string) {
	r := recover()
	if r == nil {
		return
	}
	if *err == nil {
		*err = NewPanicError(operation, r)
		return
	}
	*err = fmt.Errorf("panic in %s: %v (original error: %w)", operation, r, *err)
}
