package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/position"
	"github.com/hitoshi/roombook/internal/textnorm"
)

// RunSuggest は in の各行を入力中のクエリとして受け取り、window の間に次の行が
// 来なかったクエリについて候補を out に表示する。一致部分は [ ] で囲む。
// 入力の終端では保留中のクエリを即座に処理する。
func RunSuggest(ctx context.Context, in io.Reader, out io.Writer, candidates []model.Position, window time.Duration, maxResults int) error {
	var mu sync.Mutex
	deliver := func(s position.Suggestion) {
		mu.Lock()
		defer mu.Unlock()
		writeSuggestion(out, s)
	}

	suggester := position.NewSuggester(
		func() []model.Position { return candidates },
		position.Options{MaxResults: maxResults},
		window,
		deliver,
	)
	defer suggester.Stop()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				suggester.Flush()
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			suggester.Query(line)
		}
	}
}

func writeSuggestion(w io.Writer, s position.Suggestion) {
	fmt.Fprintf(w, "> %s (%d)\n", s.Query, len(s.Matches))
	nq := textnorm.Normalize(s.Query)
	for _, m := range s.Matches {
		var b strings.Builder
		for _, seg := range position.Highlight(m.TenViTri, nq) {
			if seg.Matched {
				b.WriteString("[" + seg.Text + "]")
			} else {
				b.WriteString(seg.Text)
			}
		}
		fmt.Fprintf(w, "  %s, %s\n", b.String(), m.TinhThanh)
	}
}
