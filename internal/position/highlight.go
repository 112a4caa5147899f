package position

import (
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/roombook/internal/textnorm"
)

// Segment はハイライト表示用に分割されたテキストの断片。
// Text は元のテキスト（アクセント記号付き）の部分文字列。
type Segment struct {
	Text    string `json:"text"`
	Matched bool   `json:"matched"`
}

// Highlight はテキスト中で正規化済みクエリに一致する箇所を分割して返す。
//
// 一致判定は正規化後の文字列で行い、返す断片は元のテキストから切り出す。
// すべての断片を連結すると元のテキストに戻る。クエリが空、または一致しない場合は
// 一致なしの断片を1つだけ返す。
func Highlight(text, normalizedQuery string) []Segment {
	if text == "" {
		return []Segment{{Text: "", Matched: false}}
	}
	if normalizedQuery == "" {
		return []Segment{{Text: text, Matched: false}}
	}

	// 元テキストのルーンごとに正規化し、正規化文字列上の位置と元の位置を対応付ける
	type span struct {
		origStart, origEnd int
		normStart, normEnd int
	}
	var (
		normalized strings.Builder
		spans      []span
	)
	for i, r := range text {
		n := textnorm.Normalize(string(r))
		start := normalized.Len()
		normalized.WriteString(n)
		spans = append(spans, span{
			origStart: i,
			origEnd:   i + utf8.RuneLen(r),
			normStart: start,
			normEnd:   normalized.Len(),
		})
	}
	norm := normalized.String()

	var (
		segments []Segment
		origPos  int // 未出力の元テキスト位置
		normPos  int // 次の検索開始位置
		k        int // spans の走査位置
	)
	for normPos < len(norm) {
		idx := strings.Index(norm[normPos:], normalizedQuery)
		if idx < 0 {
			break
		}
		matchStart := normPos + idx
		matchEnd := matchStart + len(normalizedQuery)

		// 一致開始を含むルーン
		for k < len(spans) && spans[k].normEnd <= matchStart {
			k++
		}
		first := k
		// 一致終端を含むルーン
		for k < len(spans) && spans[k].normEnd < matchEnd {
			k++
		}
		last := k
		// 正規化で消える後続の結合文字は一致側に含める
		for last+1 < len(spans) && spans[last+1].normStart == spans[last+1].normEnd {
			last++
		}
		if first >= len(spans) || last >= len(spans) {
			break
		}

		start, end := spans[first].origStart, spans[last].origEnd
		if start < origPos {
			// 1ルーンが複数文字に展開される場合の重なりは前の一致に含める
			start = origPos
		}
		if start > origPos {
			segments = append(segments, Segment{Text: text[origPos:start]})
		}
		if end > start {
			segments = append(segments, Segment{Text: text[start:end], Matched: true})
		}
		origPos = end
		normPos = spans[last].normEnd
		k = last + 1
	}

	if len(segments) == 0 {
		return []Segment{{Text: text, Matched: false}}
	}
	if origPos < len(text) {
		segments = append(segments, Segment{Text: text[origPos:]})
	}
	return segments
}
