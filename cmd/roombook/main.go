// Command roombook は宿泊検索・予約APIのBFFサーバーを起動する。
//
// サブコマンド:
//
//	serve        APIサーバー（デフォルト）
//	suggest      標準入力のクエリに対して地点候補を表示する
//	healthcheck  /health を確認する（Dockerヘルスチェック用）
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/roombook/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
