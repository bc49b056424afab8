// Package errors はパイプライン全体のエラーハンドリングと警告システムを提供します。
// cockroachdb/errors をラップし、スキーマ・ファイル・学習の各失敗を構造化して扱います。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// 警告の出力先。SetZerologWarnFunc が設定されていればそちらを優先する。
var warnings = struct {
	sync.Mutex
	handler func(error)
	zerolog func(error)
}{
	handler: func(w error) { log.Printf("rentfold-warning: %v\n", w) },
}

// SetWarningHandler は zerolog が未設定のときに使う警告ハンドラを差し替えます。
func SetWarningHandler(handler func(w error)) {
	warnings.Lock()
	warnings.handler = handler
	warnings.Unlock()
}

// SetZerologWarnFunc は構造化ログへの出力関数を登録します（pkg/log からの循環importを避けるため）。
// nil を渡すと SetWarningHandler のハンドラに戻ります。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warnings.Lock()
	warnings.zerolog = warnFunc
	warnings.Unlock()
}

// Warn は処理を止めずに警告を報告します。
func Warn(w error) {
	warnings.Lock()
	defer warnings.Unlock()
	switch {
	case warnings.zerolog != nil:
		warnings.zerolog(w)
	case warnings.handler != nil:
		warnings.handler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// DataConversionWarning は値が暗黙的に変換された（欠損扱いを含む）場合の警告です。
type DataConversionWarning struct {
	Column string
	Count  int
	Reason string
}

func (w *DataConversionWarning) Error() string {
	return fmt.Sprintf("column %q: %d values converted: %s", w.Column, w.Count, w.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *DataConversionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("column", w.Column).
		Int("count", w.Count).
		Str("reason", w.Reason).
		Str("type", "DataConversionWarning")
}

// NewDataConversionWarning は新しいDataConversionWarningを作成します。
func NewDataConversionWarning(column string, count int, reason string) *DataConversionWarning {
	return &DataConversionWarning{Column: column, Count: count, Reason: reason}
}

// NegativePredictionWarning は逆変換後の予測値が負になった場合の警告です。
// クリップはせず、件数だけを報告します。
type NegativePredictionWarning struct {
	Count int
	Min   float64
}

func (w *NegativePredictionWarning) Error() string {
	return fmt.Sprintf("%d predictions are negative after inverse transform (min=%.4f)", w.Count, w.Min)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *NegativePredictionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Int("count", w.Count).
		Float64("min", w.Min).
		Str("type", "NegativePredictionWarning")
}

// NewNegativePredictionWarning は新しいNegativePredictionWarningを作成します。
func NewNegativePredictionWarning(count int, min float64) *NegativePredictionWarning {
	return &NegativePredictionWarning{Count: count, Min: min}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// NotFittedError は未学習の状態で `Predict` や `Transform` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("rentfold: %s: not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0: rows, 1: columns
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("rentfold: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("rentfold: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError は引数の値が不適切な場合のエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("rentfold: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ColumnNotFoundError は必須カラムが存在しない場合のエラーです。
// 任意の派生特徴量では発生させず、黙ってスキップします。
type ColumnNotFoundError struct {
	Op     string
	Column string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("rentfold: %s: column %q not found", e.Op, e.Column)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ColumnNotFoundError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("column", e.Column).
		Str("type", "ColumnNotFoundError")
}

// NewColumnNotFoundError は新しいColumnNotFoundErrorを作成し、スタックトレースを付与します。
func NewColumnNotFoundError(op, column string) error {
	return errors.WithStack(&ColumnNotFoundError{Op: op, Column: column})
}

// MissingFileError は必須の入力ファイルが存在しない場合のエラーです。
// 計算を始める前に検出されます。
type MissingFileError struct {
	Role string // "train", "test", "sample_submission"
	Path string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("rentfold: required %s file not found: %s", e.Role, e.Path)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *MissingFileError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("role", e.Role).
		Str("path", e.Path).
		Str("type", "MissingFileError")
}

// NewMissingFileError は新しいMissingFileErrorを作成し、スタックトレースを付与します。
func NewMissingFileError(role, path string) error {
	return errors.WithStack(&MissingFileError{Role: role, Path: path})
}

// TrainingError は学習器のFitが失敗した場合のエラーです。
// フォールドの失敗は実行全体を中断させます。
type TrainingError struct {
	Fold int // -1 はフォールド外
	Err  error
}

func (e *TrainingError) Error() string {
	if e.Fold < 0 {
		return fmt.Sprintf("rentfold: training failed: %v", e.Err)
	}
	return fmt.Sprintf("rentfold: fold %d training failed: %v", e.Fold, e.Err)
}

func (e *TrainingError) Unwrap() error {
	return e.Err
}

// NewTrainingError は新しいTrainingErrorを作成し、スタックトレースを付与します。
func NewTrainingError(fold int, err error) error {
	return errors.WithStack(&TrainingError{Fold: fold, Err: err})
}

// ModelError は学習器に関する一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rentfold: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("rentfold: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// cockroachdb/errors の関数をそのまま公開する。
// 呼び出し側は標準の errors ではなくこのパッケージだけを import する。
var (
	Is        = errors.Is
	As        = errors.As
	Wrap      = errors.Wrap
	Wrapf     = errors.Wrapf
	New       = errors.New
	Newf      = errors.Newf
	WithStack = errors.WithStack
)

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrDegenerateTarget は目的変数が有限値でない場合のエラーです。
	ErrDegenerateTarget = New("degenerate target")
)
