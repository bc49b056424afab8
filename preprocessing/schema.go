// Package preprocessing は生の賃貸物件データをモデル入力用のスキーマに整えます。
//
// 訓練データとテストデータは連結してから変換し、その後分割します。
// これによりワンホット語彙と型判定が両側で必ず一致します。
package preprocessing

import (
	"math"
	"time"

	"github.com/estatelab/rentfold/core/frame"
	"github.com/estatelab/rentfold/pkg/errors"
	"github.com/estatelab/rentfold/pkg/log"
)

// DefaultTagColumns はスラッシュ区切りのタグ列
var DefaultTagColumns = []string{
	"building_tag_id",
	"unit_tag_id",
	"reform_interior",
	"reform_exterior",
	"reform_wet_area",
	"statuses",
}

// DefaultDateColumns は年・月・年月に展開する日付列
var DefaultDateColumns = []string{
	"building_create_date",
	"building_modify_date",
	"reform_exterior_date",
	"reform_common_area_date",
	"reform_date",
	"reform_wet_area_date",
	"reform_interior_date",
	"renovation_date",
	"snapshot_create_date",
	"new_date",
	"snapshot_modify_date",
	"timelimit_date",
	"usable_date",
}

// DefaultIDColumns は行を識別するだけの列
var DefaultIDColumns = []string{"building_id", "unit_id", "bukken_id"}

// DefaultTextColumns は汎化しない自由記述・名称の列
var DefaultTextColumns = []string{
	"building_name",
	"building_name_ruby",
	"homes_building_name",
	"homes_building_name_ruby",
	"unit_name",
	"name_ruby",
	"empty_contents",
	"parking_memo",
	"reform_place_other",
	"reform_wet_area_other",
	"reform_interior_other",
	"reform_exterior_other",
	"reform_etc",
	"renovation_etc",
	"money_sonota_str1",
	"money_sonota_str2",
	"money_sonota_str3",
}

// Options は前処理の設定
type Options struct {
	TargetColumn         string
	LogTarget            bool
	TagColumns           []string
	TagDelimiter         string
	DateColumns          []string
	AddressColumn        string
	DropColumns          []string
	CardinalityThreshold int
	FillValue            float64
}

// DefaultOptions はデフォルトの前処理設定を返す
func DefaultOptions() Options {
	drop := append(append([]string{}, DefaultIDColumns...), DefaultTextColumns...)
	return Options{
		TargetColumn:         "money_room",
		LogTarget:            true,
		TagColumns:           append([]string{}, DefaultTagColumns...),
		TagDelimiter:         "/",
		DateColumns:          append([]string{}, DefaultDateColumns...),
		AddressColumn:        "full_address",
		DropColumns:          drop,
		CardinalityThreshold: 50,
		FillValue:            -999,
	}
}

// Result は前処理の出力
type Result struct {
	Train       *frame.Frame
	Test        *frame.Frame
	Target      []float64
	Categorical []string
}

// Preprocess は訓練データとテストデータを同じスキーマに変換する
//
// 処理順:
//  1. 目的変数の取り出し（LogTarget なら log1p）
//  2. タグ列のワンホット展開
//  3. 住所から prefecture / city を生成
//  4. 日付列を年・月・年月に展開
//  5. 目的変数・ID・自由記述列の削除
//  6. 全行欠損の列を削除
//  7. 分割して列を分類し、欠損を埋める
//
// 入力の Frame は変更しない。
func Preprocess(train, test *frame.Frame, opts Options) (*Result, error) {
	logger := log.GetLoggerWithName("preprocessing")
	start := time.Now()

	targetCol, ok := train.Column(opts.TargetColumn)
	if !ok {
		return nil, errors.NewColumnNotFoundError("Preprocess", opts.TargetColumn)
	}
	if targetCol.Kind() != frame.Numeric {
		return nil, errors.NewValueError("Preprocess", "target column "+opts.TargetColumn+" is not numeric")
	}
	target := make([]float64, targetCol.Len())
	for i, v := range targetCol.Floats() {
		if opts.LogTarget {
			v = math.Log1p(v)
		}
		target[i] = v
	}

	combined, err := frame.Concat(train, test)
	if err != nil {
		return nil, errors.Wrap(err, "concatenate train and test")
	}
	logger.Info("Preprocessing started",
		log.OperationKey, log.OperationFitTransform,
		log.SamplesKey, combined.Len(),
		log.FeaturesKey, combined.Width(),
	)

	if combined, err = ExpandTags(combined, opts.TagColumns, opts.TagDelimiter); err != nil {
		return nil, err
	}
	if combined, err = AddAddressParts(combined, opts.AddressColumn); err != nil {
		return nil, err
	}
	if combined, err = ExpandDates(combined, opts.DateColumns); err != nil {
		return nil, err
	}

	combined = combined.Drop(append([]string{opts.TargetColumn}, opts.DropColumns...)...)
	combined = dropAllMissing(combined)

	trainPart := combined.Slice(0, train.Len())
	testPart := combined.Slice(train.Len(), combined.Len())

	schema := Classify(trainPart, opts.CardinalityThreshold)
	trainOut, err := schema.Apply(trainPart, opts.FillValue)
	if err != nil {
		return nil, err
	}
	testOut, err := schema.Apply(testPart, opts.FillValue)
	if err != nil {
		return nil, err
	}

	cats := schema.Categorical()
	logger.Info("Preprocessing finished",
		log.FeaturesKey, trainOut.Width(),
		log.CategoricalKey, len(cats),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return &Result{Train: trainOut, Test: testOut, Target: target, Categorical: cats}, nil
}

func dropAllMissing(f *frame.Frame) *frame.Frame {
	var empty []string
	for i := 0; i < f.Width(); i++ {
		c := f.Col(i)
		if c.MissingCount() == c.Len() {
			empty = append(empty, c.Name())
		}
	}
	if len(empty) == 0 {
		return f
	}
	log.GetLoggerWithName("preprocessing").Debug("Dropping fully missing columns", "columns", empty)
	return f.Drop(empty...)
}
