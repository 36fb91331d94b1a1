package security

import (
	"strings"
	"testing"
)

// TestSanitize_AllowedTags は許可タグが正しく通過することを検証する。
func TestSanitize_AllowedTags(t *testing.T) {
	sanitizer := NewRichTextSanitizer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
	}{
		{
			name:         "pタグが許可される",
			input:        "<p>テスト段落</p>",
			wantContains: []string{"<p>テスト段落</p>"},
		},
		{
			name:         "見出しタグが許可される",
			input:        "<h3>小見出し</h3>",
			wantContains: []string{"<h3>小見出し</h3>"},
		},
		{
			name:         "リストが許可される",
			input:        "<ul><li>項目1</li><li>項目2</li></ul>",
			wantContains: []string{"<ul>", "<li>項目1</li>", "</ul>"},
		},
		{
			name:         "強調タグが許可される",
			input:        "<p><strong>太字</strong>と<em>斜体</em></p>",
			wantContains: []string{"<strong>太字</strong>", "<em>斜体</em>"},
		},
		{
			name:         "テーブルが許可される",
			input:        "<table><tbody><tr><td>成分</td></tr></tbody></table>",
			wantContains: []string{"<table>", "<td>成分</td>"},
		},
		{
			name:         "https画像が許可される",
			input:        `<img src="https://cdn.example.com/a.png" alt="商品">`,
			wantContains: []string{"<img", `src="https://cdn.example.com/a.png"`, `alt="商品"`},
		},
		{
			name:         "サイト内リンクが許可される",
			input:        `<a href="/products/p1">商品ページ</a>`,
			wantContains: []string{`href="/products/p1"`, "商品ページ"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, expected to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

// TestSanitize_ForbiddenMarkup は禁止タグ・属性が除去されることを検証する。
func TestSanitize_ForbiddenMarkup(t *testing.T) {
	sanitizer := NewRichTextSanitizer()

	tests := []struct {
		name         string
		input        string
		wantAbsent   []string
		wantContains []string
	}{
		{
			name:         "scriptタグが除去される",
			input:        `<p>本文</p><script>alert('xss')</script>`,
			wantAbsent:   []string{"<script", "alert"},
			wantContains: []string{"<p>本文</p>"},
		},
		{
			name:       "iframeタグが除去される",
			input:      `<iframe src="https://evil.example.com"></iframe>`,
			wantAbsent: []string{"<iframe", "evil.example.com"},
		},
		{
			name:         "onclick属性が除去される",
			input:        `<p onclick="steal()">本文</p>`,
			wantAbsent:   []string{"onclick", "steal"},
			wantContains: []string{"本文"},
		},
		{
			name:         "style属性が除去される",
			input:        `<p style="display:none">本文</p>`,
			wantAbsent:   []string{"style", "display"},
			wantContains: []string{"<p>本文</p>"},
		},
		{
			name:       "javascriptスキームが除去される",
			input:      `<a href="javascript:alert(1)">リンク</a>`,
			wantAbsent: []string{"javascript:"},
		},
		{
			name:         "httpリンクはhrefだけ除去され文言は残る",
			input:        `<p><a href="http://example.com/study">研究</a></p>`,
			wantAbsent:   []string{"http://example.com/study", "href"},
			wantContains: []string{"研究"},
		},
		{
			name:       "http画像が除去される",
			input:      `<img src="http://example.com/a.png">`,
			wantAbsent: []string{"http://example.com/a.png"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, absent := range tt.wantAbsent {
				if strings.Contains(got, absent) {
					t.Errorf("Sanitize(%q) = %q, should NOT contain %q", tt.input, got, absent)
				}
			}
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, expected to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

// TestSanitize_ExternalLinkAttributes は外部リンクにtarget/relが付与されることを検証する。
func TestSanitize_ExternalLinkAttributes(t *testing.T) {
	sanitizer := NewRichTextSanitizer()

	got := sanitizer.Sanitize(`<a href="https://example.com/study">研究</a>`)
	for _, want := range []string{`target="_blank"`, "noopener", "noreferrer"} {
		if !strings.Contains(got, want) {
			t.Errorf("Sanitize() = %q, expected to contain %q", got, want)
		}
	}
}

// TestSanitize_EmptyInput は空文字列の入力を安全に処理できることを検証する。
func TestSanitize_EmptyInput(t *testing.T) {
	sanitizer := NewRichTextSanitizer()

	if got := sanitizer.Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q, expected empty string", got)
	}
}

// TestSanitize_Idempotent は同一入力に対して常に同一出力となることを検証する。
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewRichTextSanitizer()

	input := `<p>テスト<strong>太字</strong></p><a href="https://example.com">リンク</a>`

	first := sanitizer.Sanitize(input)
	second := sanitizer.Sanitize(input)
	twice := sanitizer.Sanitize(first)

	if first != second {
		t.Errorf("冪等性違反: 1回目=%q, 2回目=%q", first, second)
	}
	if first != twice {
		t.Errorf("二重サニタイズで結果が変わった: 1回目=%q, 二重=%q", first, twice)
	}
}
