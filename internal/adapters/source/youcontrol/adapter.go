// Package youcontrol は youcontrol.com.ua の会社詳細ページ ("seo-table" レイアウト) を解析する Adapter です。
package youcontrol

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/ogurasousui/company-registry/internal/adapters/source/dom"
	"github.com/ogurasousui/company-registry/internal/adapters/source/httpfetch"
	"github.com/ogurasousui/company-registry/internal/core/company"
	"github.com/ogurasousui/company-registry/internal/core/source"
)

// Name は source 名です。
const Name = "youcontrol"

// DefaultURLTemplate は会社詳細ページの URL です。{code} がレジストリコードに置換されます。
const DefaultURLTemplate = "https://youcontrol.com.ua/catalog/company_details/{code}/"

var errMissingRoot = errors.New("company header not found")

// seo-table の行ラベルと属性の対応です。ラベルは前方一致で比較します。
var rowLabels = []struct {
	prefix string
	field  company.Field
}{
	{"стан юридичної особи", company.FieldStatus},
	{"дата реєстрації", company.FieldRegistrationDate},
	{"статутний капітал", company.FieldAuthorizedCapital},
	{"розмір статутного капіталу", company.FieldAuthorizedCapital},
	{"організаційно-правова форма", company.FieldLegalForm},
	{"дані про реєстрацію платника", company.FieldTaxInfo},
	{"податковий номер", company.FieldTaxInfo},
	{"реєстраційні органи", company.FieldRegistrationAuthorities},
	{"орган реєстрації", company.FieldRegistrationAuthorities},
	{"дата останньої перевірки", company.FieldLastInspectionDate},
	{"профіль компанії", company.FieldCompanyProfile},
	{"опис", company.FieldCompanyProfile},
}

var (
	activityCodePattern = regexp.MustCompile(`\d{2}\.\d{2} `)
	addressPattern      = regexp.MustCompile(`Місцезнаходження.*?:(.*?) Телефон`)
	phonePattern        = regexp.MustCompile(`Телефон:\s*([\d\-]+)`)
	faxPattern          = regexp.MustCompile(`Факс:\s*([\d\-]+)`)
)

// Adapter は youcontrol のページを取得して Record に変換します。
type Adapter struct {
	fetcher     *httpfetch.Client
	urlTemplate string
}

var (
	_ source.Adapter = (*Adapter)(nil)
	_ source.Pacer   = (*Adapter)(nil)
)

// New は Adapter を生成します。urlTemplate が空の場合は DefaultURLTemplate を使います。
func New(fetcher *httpfetch.Client, urlTemplate string) *Adapter {
	if urlTemplate == "" {
		urlTemplate = DefaultURLTemplate
	}
	return &Adapter{fetcher: fetcher, urlTemplate: urlTemplate}
}

func (a *Adapter) Name() string {
	return Name
}

// Pace は次の送信枠を予約します。
func (a *Adapter) Pace(ctx context.Context) (context.Context, error) {
	return a.fetcher.Reserve(ctx)
}

// Fetch は code の会社詳細ページを取得して解析します。
func (a *Adapter) Fetch(ctx context.Context, code string) (*company.Record, error) {
	target := strings.ReplaceAll(a.urlTemplate, "{code}", url.PathEscape(code))
	body, err := a.fetcher.Get(ctx, code, target)
	if err != nil {
		return nil, err
	}

	record, err := Parse(body, code)
	if err != nil {
		return nil, source.ParseFailure(Name, code, err)
	}
	return record, nil
}

// Parse は会社詳細ページの HTML を Record に変換します。
// 会社名の見出しが無いページは解析失敗とし、それ以外の項目は欠けていても nil のまま返します。
func Parse(body []byte, code string) (*company.Record, error) {
	root, err := dom.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	header := dom.Find(root, dom.Element("h1", "company-name"))
	if header == nil {
		return nil, errMissingRoot
	}

	record := &company.Record{
		Code: code,
		Name: source.Optional(dom.Text(header)),
	}

	for _, row := range dom.FindAll(root, dom.Element("div", "seo-table-row")) {
		label := strings.ToLower(source.CleanText(dom.Text(dom.Find(row, dom.Element("", "seo-table-col-1")))))
		value := dom.Find(row, dom.Element("", "seo-table-col-2"))
		if label == "" || value == nil {
			continue
		}
		for _, l := range rowLabels {
			if strings.HasPrefix(label, l.prefix) && record.Get(l.field) == nil {
				record.Set(l.field, source.Optional(dom.Text(value)))
				break
			}
		}
	}

	if status := dom.Find(root, dom.Element("span", "text-green")); status != nil {
		if v := source.Optional(dom.Text(status)); v != nil {
			record.Status = v
		}
	}

	record.MainActivity = parseActivities(root)
	record.ContactInfo = parseContacts(root)
	record.AuthorizedPerson = joinItems(dom.FindAll(dom.Find(root, dom.Element("ul", "seo-table-list")), dom.Element("li")))

	return record, nil
}

func parseActivities(root *html.Node) *string {
	list := dom.Find(root, dom.Element("ul", "activities-list"))
	if list == nil {
		return nil
	}
	var raw []string
	for _, li := range dom.FindAll(list, dom.Element("li")) {
		raw = append(raw, source.CleanText(dom.Text(li)))
	}
	text := strings.Join(raw, " ")

	// 各活動は "NN.NN 名称" の形式で連結されているため、コードの出現位置で区切ります。
	starts := activityCodePattern.FindAllStringIndex(text, -1)
	if len(starts) == 0 {
		return source.Optional(text)
	}
	activities := make([]string, 0, len(starts))
	for i, loc := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		if a := strings.TrimSpace(text[loc[0]:end]); a != "" {
			activities = append(activities, a)
		}
	}
	return source.Optional(strings.Join(activities, "; "))
}

func parseContacts(root *html.Node) *string {
	table := dom.Find(root, dom.Element("table", "seo-table-item"))
	if table == nil {
		return nil
	}
	var rows []string
	for _, tr := range dom.FindAll(table, dom.Element("tr")) {
		rows = append(rows, source.CleanText(dom.Text(tr)))
	}
	text := strings.Join(rows, " ")

	var parts []string
	if m := addressPattern.FindStringSubmatch(text); m != nil {
		if v := strings.TrimSpace(m[1]); v != "" {
			parts = append(parts, "Address: "+v)
		}
	}
	if m := phonePattern.FindStringSubmatch(text); m != nil {
		parts = append(parts, "Phone: "+m[1])
	}
	if m := faxPattern.FindStringSubmatch(text); m != nil {
		parts = append(parts, "Fax: "+m[1])
	}
	if len(parts) == 0 {
		return source.Optional(text)
	}
	return source.Optional(strings.Join(parts, " "))
}

func joinItems(items []*html.Node) *string {
	var values []string
	for _, item := range items {
		if v := source.CleanText(dom.Text(item)); v != "" {
			values = append(values, v)
		}
	}
	return source.Optional(strings.Join(values, "; "))
}
