// Package position は地点候補の絞り込みと表示用ハイライトを提供する。
//
// Filter と Highlight は純粋関数で、入力の候補リストを変更しない。
// キー入力ごとの呼び出し頻度の制御は Debouncer / Suggester が担う。
package position

import (
	"strings"

	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/textnorm"
)

// DefaultMaxResults は Options.MaxResults 未指定時の最大件数。
const DefaultMaxResults = 10

// Field は候補から照合対象の文字列を取り出すセレクタ。
type Field func(model.Position) string

// DisplayName は地点の表示名（tenViTri）を返す。
func DisplayName(p model.Position) string { return p.TenViTri }

// Region は地点の省・都市名（tinhThanh）を返す。
func Region(p model.Position) string { return p.TinhThanh }

// Country は地点の国名（quocGia）を返す。
func Country(p model.Position) string { return p.QuocGia }

// DefaultFields は Options.Fields 未指定時の照合対象。
var DefaultFields = []Field{DisplayName, Region}

// Options は Filter の動作設定。
// ゼロ値の項目はデフォルト値で補われる。
type Options struct {
	MaxResults int
	Fields     []Field
}

func (o Options) withDefaults() Options {
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	if len(o.Fields) == 0 {
		o.Fields = DefaultFields
	}
	return o
}

// Filter はクエリに一致する候補を元の順序のまま最大 MaxResults 件返す。
//
// クエリが空または空白のみの場合は先頭から MaxResults 件を返す。
// それ以外はクエリを一度だけ正規化し、設定されたいずれかのフィールドの正規化結果が
// クエリを部分文字列として含む候補を一致とみなす。スコアリングは行わない。
func Filter(candidates []model.Position, query string, opts Options) []model.Position {
	opts = opts.withDefaults()

	if strings.TrimSpace(query) == "" {
		n := min(opts.MaxResults, len(candidates))
		out := make([]model.Position, n)
		copy(out, candidates[:n])
		return out
	}

	q := textnorm.Normalize(query)
	out := make([]model.Position, 0, min(opts.MaxResults, len(candidates)))
	for _, c := range candidates {
		if len(out) == opts.MaxResults {
			break
		}
		if matches(c, q, opts.Fields) {
			out = append(out, c)
		}
	}
	return out
}

func matches(c model.Position, normalizedQuery string, fields []Field) bool {
	for _, f := range fields {
		if strings.Contains(textnorm.Normalize(f(c)), normalizedQuery) {
			return true
		}
	}
	return false
}
