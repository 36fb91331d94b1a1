package security

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StripMarkup はHTMLフラグメントからマークアップを取り除き、プレーンテキストを返す。
// 文字参照はデコードされ、連続する空白は1つの半角スペースにまとめられる。
// script / style 要素の中身はテキストとして扱わず捨てる。
// 戻り値はエスケープされていないので、出力側（html/template）でエスケープすること。
func StripMarkup(fragment string) string {
	if fragment == "" {
		return ""
	}

	z := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	skipDepth := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF以外（壊れたマークアップ）でもそこまでのテキストは返す
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script, atom.Style:
				skipDepth++
			case atom.Br, atom.P, atom.Div, atom.Li:
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script, atom.Style:
				if skipDepth > 0 {
					skipDepth--
				}
			case atom.P, atom.Div, atom.Li:
				b.WriteByte(' ')
			}
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.Br {
				b.WriteByte(' ')
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(z.Text())
			}
		}
	}
}

// HasVisibleContent はHTMLフラグメントに表示される内容があるかどうかを返す。
// 空白以外のテキストか画像・区切り線があれば true。script / style の中身は数えない。
func HasVisibleContent(fragment string) bool {
	if strings.TrimSpace(fragment) == "" {
		return false
	}
	if StripMarkup(fragment) != "" {
		return true
	}

	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Img, atom.Hr:
				return true
			}
		}
	}
}
