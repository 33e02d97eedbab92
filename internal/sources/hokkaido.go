package sources

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"emergency-dispatch/internal/fetch"
	"emergency-dispatch/internal/models"
)

type hakodateAdapter struct{ page }

func hakodate() Adapter {
	return hakodateAdapter{page{
		code:     "012025",
		name:     "函館市消防本部",
		url:      "http://fc23371220232011.web4.blks.jp/html/index.html",
		encoding: fetch.ShiftJIS,
	}}
}

// Collect parses cells like "10時05分 函館市本町付近で建物火災のため、消防車が出動しています。".
func (a hakodateAdapter) Collect(ctx context.Context, cache *fetch.Cache) (models.Record, error) {
	rec := a.record()
	doc, err := a.document(ctx, cache)
	if err != nil {
		return rec, err
	}

	doc.Find("table.SGINFO tr td").Each(func(_ int, s *goquery.Selection) {
		text := ToHalfWidth(strings.TrimSpace(s.Text()))
		if strings.Contains(text, "災害は発生しておりません") || strings.Contains(text, "ないことを確認し終了") {
			return
		}
		before, after, ok := strings.Cut(text, "函館市")
		if !ok {
			return
		}
		location, reason, ok := strings.Cut(after, "付近で")
		if !ok {
			return
		}
		typ, _, found := strings.Cut(reason, "のため")
		if !found {
			typ, _, _ = strings.Cut(reason, "、")
		}
		add(&rec, typ, "北海道函館市"+strings.TrimSpace(location), clockTime(lastRunes(strings.TrimSpace(before), 6)))
	})
	return rec, nil
}

type kitahiroshimaAdapter struct{ page }

func kitahiroshima() Adapter {
	return kitahiroshimaAdapter{page{
		code: "012343",
		name: "北広島市消防本部",
		url:  "https://www.119.city.sapporo.jp/saigai/05/index.html",
	}}
}

// Collect reads the "◆現在の出動" block, where "●" lines name the dispatch
// type and the "・" lines below list "place（HH時MM分）".
func (a kitahiroshimaAdapter) Collect(ctx context.Context, cache *fetch.Cache) (models.Record, error) {
	rec := a.record()
	doc, err := a.document(ctx, cache)
	if err != nil {
		return rec, err
	}

	text := strings.Join(textLines(doc.Find("body")), "\n")
	start := strings.Index(text, "◆現在の出動")
	if start < 0 {
		return rec, nil
	}
	block := text[start:]
	if end := strings.Index(block, "◆救急出動情報"); end >= 0 {
		block = block[:end]
	}
	if strings.Contains(block, "現在出動中の災害はありません") {
		return rec, nil
	}

	var typ string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "●"):
			typ = strings.TrimSpace(strings.ReplaceAll(strings.TrimLeft(line, "●"), "出動", ""))
		case strings.HasPrefix(line, "・") && typ != "":
			entry := strings.TrimSpace(strings.TrimLeft(line, "・"))
			i := strings.LastIndex(entry, "（")
			if i < 0 {
				continue
			}
			location, tm := entry[:i], strings.TrimSuffix(entry[i+len("（"):], "）")
			add(&rec, typ, "北海道"+strings.TrimSpace(location), clockTime(tm))
		}
	}
	return rec, nil
}
