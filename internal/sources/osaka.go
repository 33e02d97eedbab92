package sources

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"emergency-dispatch/internal/fetch"
	"emergency-dispatch/internal/models"
)

// osakaMinamiURL is shared by every member municipality of 大阪南消防組合;
// the fetch cache turns the family into a single request per run.
const osakaMinamiURL = "https://www.om119.jp/section/saigaiPc.html"

type osakaMinamiAdapter struct {
	page
	municipality string
}

func osakaMinami(code, municipality string) Adapter {
	return osakaMinamiAdapter{
		page: page{
			code:     code,
			name:     "大阪南消防組合",
			url:      osakaMinamiURL,
			encoding: fetch.ShiftJIS,
		},
		municipality: municipality,
	}
}

// Collect keeps the entries located in the adapter's municipality:
// "11月4日21時54分ごろ、柏原市国分本町付近において、救急車の応援の通報により出動中です。".
func (a osakaMinamiAdapter) Collect(ctx context.Context, cache *fetch.Cache) (models.Record, error) {
	rec := a.record()
	doc, err := a.document(ctx, cache)
	if err != nil {
		return rec, err
	}

	doc.Find("ul").First().Find("li span.item").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if strings.Contains(text, "現在、火事などの災害は発生していません") {
			return false
		}
		dateTime, rest, ok := strings.Cut(text, "ごろ、")
		if !ok {
			return true
		}
		location, info, ok := strings.Cut(rest, "付近において、")
		if !ok {
			return true
		}
		i := strings.Index(location, a.municipality)
		if i < 0 {
			return true
		}
		_, tm, ok := strings.Cut(dateTime, "日")
		if !ok {
			return true
		}
		typ := strings.NewReplacer("の通報により出動中です。", "", "の通報により出動しました。", "").Replace(info)
		add(&rec, typ, "大阪府"+strings.TrimSpace(location[i:]), clockTime(tm))
		return true
	})
	return rec, nil
}
