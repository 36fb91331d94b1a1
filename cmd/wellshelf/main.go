// Command wellshelf はストアフロントの記事ページ（ブログ・PSEO）を配信するサーバー。
//
// サブコマンド:
//
//	serve        HTTPサーバーを起動する（デフォルト）
//	migrate      データベースマイグレーションを適用する
//	healthcheck  /health を確認する（Dockerヘルスチェック用）
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/wellshelf/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "wellshelf: %v\n", err)
		os.Exit(1)
	}
}
