package render

import (
	"bytes"
	"embed"
	"html/template"
)

//go:embed templates/*.html.tmpl
var templatesFS embed.FS

// blockTemplates はブロック・参考文献・レガシー本文のテンプレート集合。
// html/template が属性・URLのコンテキストに応じてエスケープする。
var blockTemplates = template.Must(template.ParseFS(templatesFS, "templates/blocks.html.tmpl"))

// execute は名前付きテンプレートを実行してHTMLを返す。
func execute(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := blockTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
