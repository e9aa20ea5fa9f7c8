// Package opendatabot は opendatabot.ua の会社カード形式のページを解析する Adapter です。
package opendatabot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ogurasousui/company-registry/internal/adapters/source/dom"
	"github.com/ogurasousui/company-registry/internal/adapters/source/httpfetch"
	"github.com/ogurasousui/company-registry/internal/core/company"
	"github.com/ogurasousui/company-registry/internal/core/source"
)

// Name は source 名です。
const Name = "opendatabot"

// DefaultURLTemplate は会社カードページの URL です。
const DefaultURLTemplate = "https://opendatabot.ua/c/{code}"

var errMissingCard = errors.New("company card not found")

// dt ラベル (小文字) と属性の対応です。
var termFields = map[string]company.Field{
	"status":             company.FieldStatus,
	"стан":               company.FieldStatus,
	"registration date":  company.FieldRegistrationDate,
	"дата реєстрації":    company.FieldRegistrationDate,
	"authorized capital": company.FieldAuthorizedCapital,
	"статутний капітал":  company.FieldAuthorizedCapital,
	"legal form":         company.FieldLegalForm,
	"організаційно-правова форма": company.FieldLegalForm,
	"main activity":     company.FieldMainActivity,
	"основний квед":     company.FieldMainActivity,
	"address":           company.FieldContactInfo,
	"адреса":            company.FieldContactInfo,
	"director":          company.FieldAuthorizedPerson,
	"керівник":          company.FieldAuthorizedPerson,
	"registrar":         company.FieldRegistrationAuthorities,
	"реєстратор":        company.FieldRegistrationAuthorities,
	"last inspection":   company.FieldLastInspectionDate,
	"остання перевірка": company.FieldLastInspectionDate,
}

// Adapter は opendatabot のページを取得して Record に変換します。
type Adapter struct {
	fetcher     *httpfetch.Client
	urlTemplate string
}

var (
	_ source.Adapter = (*Adapter)(nil)
	_ source.Pacer   = (*Adapter)(nil)
)

// New は Adapter を生成します。
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

// Parse は会社カードを Record に変換します。
func Parse(body []byte, code string) (*company.Record, error) {
	root, err := dom.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	card := dom.Find(root, dom.Element("div", "company-card"))
	if card == nil {
		return nil, errMissingCard
	}

	record := &company.Record{Code: code}
	record.Name = source.Optional(dom.Text(dom.Find(card, dom.WithAttr("", "itemprop", "name"))))
	record.TaxInfo = source.Optional(dom.Text(dom.Find(card, dom.WithAttr("", "itemprop", "taxID"))))
	record.CompanyProfile = source.Optional(dom.Text(dom.Find(card, dom.Element("", "company-description"))))

	for _, dl := range dom.FindAll(card, dom.Element("dl")) {
		var current company.Field
		for _, n := range dom.Children(dl, dom.Element("")) {
			switch n.Data {
			case "dt":
				label := strings.TrimSuffix(strings.ToLower(source.CleanText(dom.Text(n))), ":")
				current = termFields[label]
			case "dd":
				if current == "" || record.Get(current) != nil {
					continue
				}
				record.Set(current, source.Optional(dom.Text(n)))
			}
		}
	}

	return record, nil
}
