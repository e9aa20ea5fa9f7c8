package company

import "time"

// Field はレジストリ由来の属性名を表します。値はそのまま永続化層のカラム名として扱います。
type Field string

const (
	FieldName                    Field = "name"
	FieldStatus                  Field = "status"
	FieldRegistrationDate        Field = "registration_date"
	FieldAuthorizedCapital       Field = "authorized_capital"
	FieldLegalForm               Field = "legal_form"
	FieldMainActivity            Field = "main_activity"
	FieldContactInfo             Field = "contact_info"
	FieldAuthorizedPerson        Field = "authorized_person"
	FieldTaxInfo                 Field = "tax_info"
	FieldRegistrationAuthorities Field = "registration_authorities"
	FieldLastInspectionDate      Field = "last_inspection_date"
	FieldCompanyProfile          Field = "company_profile"
)

// AllFields は差分判定の対象となる属性の一覧です。LastUpdated などの管理項目は含みません。
var AllFields = []Field{
	FieldName,
	FieldStatus,
	FieldRegistrationDate,
	FieldAuthorizedCapital,
	FieldLegalForm,
	FieldMainActivity,
	FieldContactInfo,
	FieldAuthorizedPerson,
	FieldTaxInfo,
	FieldRegistrationAuthorities,
	FieldLastInspectionDate,
	FieldCompanyProfile,
}

// Record はレジストリから取得した会社情報のローカルコピーです。
type Record struct {
	ID   string
	Code string

	Name                    *string
	Status                  *string
	RegistrationDate        *string
	AuthorizedCapital       *string
	LegalForm               *string
	MainActivity            *string
	ContactInfo             *string
	AuthorizedPerson        *string
	TaxInfo                 *string
	RegistrationAuthorities *string
	LastInspectionDate      *string
	CompanyProfile          *string

	LastUpdated time.Time
	CreatedAt   time.Time
}

// Get は指定された属性の値を返します。
func (r *Record) Get(f Field) *string {
	if r == nil {
		return nil
	}
	if p := r.slot(f); p != nil {
		return *p
	}
	return nil
}

// Set は指定された属性に値を設定します。未知の属性は無視します。
func (r *Record) Set(f Field, v *string) {
	if p := r.slot(f); p != nil {
		*p = v
	}
}

func (r *Record) slot(f Field) **string {
	switch f {
	case FieldName:
		return &r.Name
	case FieldStatus:
		return &r.Status
	case FieldRegistrationDate:
		return &r.RegistrationDate
	case FieldAuthorizedCapital:
		return &r.AuthorizedCapital
	case FieldLegalForm:
		return &r.LegalForm
	case FieldMainActivity:
		return &r.MainActivity
	case FieldContactInfo:
		return &r.ContactInfo
	case FieldAuthorizedPerson:
		return &r.AuthorizedPerson
	case FieldTaxInfo:
		return &r.TaxInfo
	case FieldRegistrationAuthorities:
		return &r.RegistrationAuthorities
	case FieldLastInspectionDate:
		return &r.LastInspectionDate
	case FieldCompanyProfile:
		return &r.CompanyProfile
	default:
		return nil
	}
}

// Clone は属性値のポインタも含めて複製します。
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	for _, f := range AllFields {
		if v := r.Get(f); v != nil {
			s := *v
			c.Set(f, &s)
		}
	}
	return &c
}

// DisplayName は通知などで使う表示名を返します。名称が無い場合はコードを返します。
func (r *Record) DisplayName() string {
	if r == nil {
		return ""
	}
	if r.Name != nil && *r.Name != "" {
		return *r.Name
	}
	return r.Code
}
