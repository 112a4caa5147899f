package upstream

import "time"

// Outcome はHTTPステータスコードに基づく呼び出し結果の分類。
type Outcome int

const (
	// OutcomeOK は成功（2xx）。
	OutcomeOK Outcome = iota
	// OutcomeRetry は再試行で回復しうる失敗（429/5xx）。
	OutcomeRetry
	// OutcomeFail は再試行しても回復しない失敗（4xx など）。
	OutcomeFail
)

const (
	// initialBackoff はリトライの初回待機時間。
	initialBackoff = 200 * time.Millisecond
	// maxBackoff はリトライ待機時間の上限。
	maxBackoff = 2 * time.Second
)

// ClassifyStatus はHTTPステータスコードを呼び出し結果に分類する。
func ClassifyStatus(statusCode int) Outcome {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return OutcomeOK
	case statusCode == 429:
		return OutcomeRetry
	case statusCode >= 500:
		return OutcomeRetry
	default:
		return OutcomeFail
	}
}

// CalculateBackoff はリトライ回数に基づいて指数バックオフの待機時間を計算する。
// 初回200ミリ秒、2倍ずつ増加、最大2秒。
func CalculateBackoff(retry int) time.Duration {
	delay := initialBackoff
	for i := 0; i < retry; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
