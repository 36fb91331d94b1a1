package content

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// fields はJSONオブジェクト1つ分の生フィールド。
type fields map[string]json.RawMessage

// errMissingField は必須フィールドが欠けている（または空白のみ）ことを表す。
var errMissingField = errors.New("missing required field")

// isNull はフィールドが存在しないかJSONのnullであるかを返す。
func (f fields) isNull(name string) bool {
	raw, ok := f[name]
	return !ok || strings.TrimSpace(string(raw)) == "null"
}

// requiredString は空白以外の文字を含む文字列フィールドを返す。
// 欠落・null・空白のみ・文字列以外の場合はエラーを返す。
func (f fields) requiredString(name string) (string, error) {
	if f.isNull(name) {
		return "", fmt.Errorf("%s: %w", name, errMissingField)
	}
	var s string
	if err := json.Unmarshal(f[name], &s); err != nil {
		return "", fmt.Errorf("%s: not a string: %w", name, err)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%s: %w", name, errMissingField)
	}
	return s, nil
}

// optionalString は任意の文字列フィールドを返す。
// 欠落・null・文字列以外の場合は空文字列として扱う。
func (f fields) optionalString(name string) string {
	if f.isNull(name) {
		return ""
	}
	var s string
	if err := json.Unmarshal(f[name], &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// identifier はブロックの "id" を返す。文字列と数値を受け付ける。
func (f fields) identifier() string {
	if f.isNull("id") {
		return ""
	}
	var s string
	if err := json.Unmarshal(f["id"], &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(f["id"], &n); err == nil {
		return n.String()
	}
	return ""
}

// array はフィールドをJSON配列として取り出す。
// 欠落・null の場合は (nil, nil)、配列以外の場合はエラーを返す。
func (f fields) array(name string) ([]json.RawMessage, error) {
	if f.isNull(name) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(f[name], &items); err != nil {
		return nil, fmt.Errorf("%s: not an array: %w", name, err)
	}
	return items, nil
}

// stringList はJSON配列から空でない文字列要素だけを順に取り出す。
func stringList(items []json.RawMessage) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// object は生JSONをオブジェクトとしてデコードする。
func object(raw json.RawMessage) (fields, error) {
	var f fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	if f == nil {
		return nil, errors.New("null is not an object")
	}
	return f, nil
}
