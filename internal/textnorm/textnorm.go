// Package textnorm は検索・比較用のテキスト正規化を提供する。
//
// アクセント記号（ベトナム語の声調記号など）を除去し小文字化した比較用文字列と、
// ルーティングに使用するスラッグを生成する。どちらも純粋関数で、同一入力に対して
// 常に同一出力を返す。
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks はNFD分解後に結合文字（Mn）を除去し、NFCで再合成する変換。
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// letterFolds はUnicode分解で基底文字に落ちない文字の置換表。
// Đ/đ はベトナム語で頻出するが NFD では分解されない。
var letterFolds = strings.NewReplacer(
	"Đ", "d", "đ", "d",
	"Ø", "o", "ø", "o",
	"Ł", "l", "ł", "l",
	"ß", "ss", "ẞ", "ss",
	"Æ", "ae", "æ", "ae",
	"Œ", "oe", "œ", "oe",
	"Þ", "th", "þ", "th",
	"ı", "i",
)

// Normalize はテキストを比較用の正規形に変換する。
// 小文字化、アクセント記号の除去、特殊文字の置換をこの順で行う。
// 置換を最後に行うのは "ǿ" のように記号除去後に初めて置換対象になる文字があるため。
// 冪等であり、Normalize(Normalize(s)) == Normalize(s) が成り立つ。
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	lowered := strings.ToLower(text)
	stripped, _, err := transform.String(stripMarks, lowered)
	if err != nil {
		stripped = lowered
	}
	return letterFolds.Replace(stripped)
}

// Slugify はテキストをURLパスに使用できるスラッグに変換する。
// 正規化後、[a-z0-9] 以外の連続した文字を1つのハイフンに置換し、先頭と末尾のハイフンを除去する。
// 例: "Lâm Đồng" → "lam-dong"
func Slugify(text string) string {
	normalized := Normalize(text)

	var b strings.Builder
	b.Grow(len(normalized))
	pendingHyphen := false
	for _, r := range normalized {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}
