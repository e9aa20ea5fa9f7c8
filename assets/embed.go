// Package assets は実行バイナリに同梱する静的ファイルです。
package assets

import "embed"

// Migrations は golang-migrate 形式のスキーマ定義です。
//
//go:embed migrations/*.sql
var Migrations embed.FS
