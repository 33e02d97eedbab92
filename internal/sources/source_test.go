package sources

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"emergency-dispatch/internal/fetch"
	"emergency-dispatch/internal/models"
)

// pages serves canned, already-decoded bodies by URL.
type pages struct {
	bodies map[string]string
	calls  map[string]int
}

func (p *pages) Fetch(_ context.Context, req fetch.Request) (string, error) {
	if p.calls == nil {
		p.calls = make(map[string]int)
	}
	p.calls[req.URL]++
	body, ok := p.bodies[req.URL]
	if !ok {
		return "", errors.New("no such page")
	}
	return body, nil
}

func collect(t *testing.T, a Adapter, url, body string) models.Record {
	t.Helper()
	cache := fetch.NewCache(&pages{bodies: map[string]string{url: body}})
	rec, err := a.Collect(context.Background(), cache)
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if rec.Code != a.Code() {
		t.Errorf("Code = %q, want %q", rec.Code, a.Code())
	}
	if rec.Source().URL != url || rec.Source().Name != a.Name() {
		t.Errorf("Source = %+v", rec.Source())
	}
	return rec
}

func TestHakodate(t *testing.T) {
	body := `<html><body><div><table class="SGINFO"><tbody>
<tr><td>１０時０５分 函館市本町付近で建物火災のため、消防車が出動しています。</td></tr>
<tr><td>現在、災害は発生しておりません。</td></tr>
<tr><td>意味のない行</td></tr>
</tbody></table></div></body></html>`

	rec := collect(t, hakodate(), "http://fc23371220232011.web4.blks.jp/html/index.html", body)
	want := []models.Disaster{{Type: "建物火災", Address: "北海道函館市本町", Time: "10:05"}}
	if !reflect.DeepEqual(rec.Disasters, want) {
		t.Errorf("Disasters = %+v, want %+v", rec.Disasters, want)
	}
}

func TestKitahiroshima(t *testing.T) {
	body := `<html><body>
<p>◆現在の出動</p>
<p>●火災出動</p>
<p>・北広島市中央３丁目（１３時２０分）</p>
<p>●救助出動</p>
<p>・北広島市大曲（１４時０１分）</p>
<p>◆救急出動情報</p>
<p>・北広島市共栄（１５時００分）</p>
</body></html>`

	rec := collect(t, kitahiroshima(), "https://www.119.city.sapporo.jp/saigai/05/index.html", body)
	want := []models.Disaster{
		{Type: "火災", Address: "北海道北広島市中央３丁目", Time: "13:20"},
		{Type: "救助", Address: "北海道北広島市大曲", Time: "14:01"},
	}
	if !reflect.DeepEqual(rec.Disasters, want) {
		t.Errorf("Disasters = %+v, want %+v", rec.Disasters, want)
	}
}

func TestKitahiroshimaNoDispatch(t *testing.T) {
	body := `<html><body><p>◆現在の出動</p><p>現在出動中の災害はありません</p><p>◆救急出動情報</p></body></html>`
	rec := collect(t, kitahiroshima(), "https://www.119.city.sapporo.jp/saigai/05/index.html", body)
	if len(rec.Disasters) != 0 {
		t.Errorf("Disasters = %+v, want none", rec.Disasters)
	}
}

func TestKomatsu(t *testing.T) {
	body := `<html><body><div class="panel-body">１月１５日 ９時１２分頃、園町付近で建物火災が発生し、消防車が出動しています。</div>
<div class="panel-body">過去の災害</div></body></html>`

	rec := collect(t, komatsu(), "http://www.kfd119.jp/fire/saigai/saigaipc.html", body)
	want := []models.Disaster{{Type: "建物火災", Address: "石川県小松市園町", Time: "9:12"}}
	if !reflect.DeepEqual(rec.Disasters, want) {
		t.Errorf("Disasters = %+v, want %+v", rec.Disasters, want)
	}
}

func TestKasugai(t *testing.T) {
	body := `<html><body><ul>
<li>09月10日 17時31分頃　春日井市鳥居松町付近で、高所事故救助が発生中です。</li>
<li>お知らせ</li>
</ul><ul><li>09月09日 08時00分頃　春日井市味美町付近で、火災が発生中です。</li></ul></body></html>`

	rec := collect(t, kasugai(), "http://www.syobo.city.kasugai.aichi.jp/syobo/real/kasai.html", body)
	want := []models.Disaster{{Type: "高所事故救助", Address: "愛知県春日井市鳥居松町", Time: "17:31"}}
	if !reflect.DeepEqual(rec.Disasters, want) {
		t.Errorf("Disasters = %+v, want %+v", rec.Disasters, want)
	}
}

const osakaPage = `<html><body><ul>
<li><span class="item">11月4日21時54分ごろ、柏原市国分本町４丁目付近において、救急車の応援の通報により出動中です。</span></li>
<li><span class="item">11月4日22時10分ごろ、羽曳野市高鷲４丁目付近において、建物火災の通報により出動中です。</span></li>
<li><span class="item">11月4日22時15分ごろ、南河内郡河南町白木付近において、救助の通報により出動しました。</span></li>
</ul></body></html>`

func TestOsakaMinamiFiltersByMunicipality(t *testing.T) {
	tests := []struct {
		code string
		want models.Disaster
	}{
		{"272213", models.Disaster{Type: "救急車の応援", Address: "大阪府柏原市国分本町４丁目", Time: "21:54"}},
		{"272221", models.Disaster{Type: "建物火災", Address: "大阪府羽曳野市高鷲４丁目", Time: "22:10"}},
		{"273643", models.Disaster{Type: "救助", Address: "大阪府河南町白木", Time: "22:15"}},
	}
	adapters, err := Lookup([]string{"272213", "272221", "273643"})
	if err != nil {
		t.Fatalf("Lookup error: %v", err)
	}
	for i, tt := range tests {
		rec := collect(t, adapters[i], osakaMinamiURL, osakaPage)
		if rec.Code != tt.code {
			t.Fatalf("adapter %d code = %s, want %s", i, rec.Code, tt.code)
		}
		if len(rec.Disasters) != 1 || rec.Disasters[0] != tt.want {
			t.Errorf("%s: Disasters = %+v, want [%+v]", tt.code, rec.Disasters, tt.want)
		}
	}
}

func TestOsakaMinamiSharesOneFetch(t *testing.T) {
	p := &pages{bodies: map[string]string{osakaMinamiURL: osakaPage}}
	cache := fetch.NewCache(p)
	for _, code := range []string{"272213", "272221", "273643"} {
		adapters, err := Lookup([]string{code})
		if err != nil {
			t.Fatalf("Lookup error: %v", err)
		}
		if _, err := adapters[0].Collect(context.Background(), cache); err != nil {
			t.Fatalf("Collect %s error: %v", code, err)
		}
	}
	if p.calls[osakaMinamiURL] != 1 {
		t.Errorf("shared page fetched %d times, want 1", p.calls[osakaMinamiURL])
	}
}

func TestCollectPropagatesFetchError(t *testing.T) {
	cache := fetch.NewCache(&pages{})
	if _, err := komatsu().Collect(context.Background(), cache); err == nil {
		t.Error("expected fetch error")
	}
}

func TestRegistryIsSortedAndUnique(t *testing.T) {
	reg := Registry()
	seen := make(map[string]bool)
	for i, a := range reg {
		if seen[a.Code()] {
			t.Errorf("duplicate code %s", a.Code())
		}
		seen[a.Code()] = true
		if i > 0 && reg[i-1].Code() >= a.Code() {
			t.Errorf("registry not sorted at %d: %s >= %s", i, reg[i-1].Code(), a.Code())
		}
	}
}

func TestLookupUnknownCode(t *testing.T) {
	if _, err := Lookup([]string{"012025", "000000"}); err == nil {
		t.Error("expected error for unknown code")
	}
}

func TestToHalfWidth(t *testing.T) {
	if got := ToHalfWidth("１２時３８分"); got != "12時38分" {
		t.Errorf("ToHalfWidth = %q", got)
	}
	if got := clockTime("１２時３８分"); got != "12:38" {
		t.Errorf("clockTime = %q", got)
	}
}
