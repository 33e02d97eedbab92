package sources

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"emergency-dispatch/internal/fetch"
	"emergency-dispatch/internal/models"
)

type komatsuAdapter struct{ page }

func komatsu() Adapter {
	return komatsuAdapter{page{
		code:     "172031",
		name:     "小松市消防本部",
		url:      "http://www.kfd119.jp/fire/saigai/saigaipc.html",
		encoding: fetch.ShiftJIS,
	}}
}

// Collect reads the first panel, which holds at most one current dispatch:
// "1月15日 10時05分頃、園町付近で建物火災が発生し、消防車が出動しています。".
func (a komatsuAdapter) Collect(ctx context.Context, cache *fetch.Cache) (models.Record, error) {
	rec := a.record()
	doc, err := a.document(ctx, cache)
	if err != nil {
		return rec, err
	}

	text := ToHalfWidth(strings.TrimSpace(doc.Find("div.panel-body").First().Text()))
	if text == "" || strings.Contains(text, "現在、火災等の災害は発生していません") {
		return rec, nil
	}
	dateTime, rest, ok := strings.Cut(text, "頃、")
	if !ok {
		return rec, nil
	}
	location, info, ok := strings.Cut(rest, "付近で")
	if !ok {
		return rec, nil
	}
	typ, _, found := strings.Cut(info, "が発生し")
	if !found {
		typ, _, _ = strings.Cut(info, "、")
	}
	var tm string
	if fields := strings.Fields(dateTime); len(fields) > 0 {
		tm = clockTime(fields[len(fields)-1])
	}
	add(&rec, typ, "石川県小松市"+strings.TrimSpace(location), tm)
	return rec, nil
}

type kasugaiAdapter struct{ page }

func kasugai() Adapter {
	return kasugaiAdapter{page{
		code:     "232068",
		name:     "春日井市消防本部",
		url:      "http://www.syobo.city.kasugai.aichi.jp/syobo/real/kasai.html",
		encoding: fetch.ShiftJIS,
	}}
}

// Collect reads list items of the first list:
// "09月10日 17時31分頃　春日井市鳥居松町付近で、高所事故救助が発生中です。".
func (a kasugaiAdapter) Collect(ctx context.Context, cache *fetch.Cache) (models.Record, error) {
	rec := a.record()
	doc, err := a.document(ctx, cache)
	if err != nil {
		return rec, err
	}

	doc.Find("ul").First().Find("li").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if strings.Contains(text, "現在、火災等の災害は発生していません") {
			return false
		}
		if !strings.Contains(text, "が発生中です") {
			return true
		}
		dateTime, rest, ok := strings.Cut(text, "頃　春日井市")
		if !ok {
			return true
		}
		address, info, ok := strings.Cut(rest, "付近で、")
		if !ok {
			return true
		}
		var tm string
		if fields := strings.Fields(dateTime); len(fields) > 1 {
			tm = clockTime(fields[1])
		}
		typ := strings.ReplaceAll(info, "が発生中です。", "")
		add(&rec, typ, "愛知県春日井市"+strings.TrimSpace(address), tm)
		return true
	})
	return rec, nil
}
