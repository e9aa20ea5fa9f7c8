package company

// Differs は保存済みレコードと新たに取得したレコードの間に属性の差異があるかを判定します。
// old が nil の場合は常に true です。ID, Code, LastUpdated, CreatedAt は比較しません。
func Differs(old, fetched *Record) bool {
	if old == nil {
		return true
	}
	for _, f := range AllFields {
		if !equalValue(old.Get(f), fetched.Get(f)) {
			return true
		}
	}
	return false
}

// ChangedFields は差異のある属性を AllFields の順序で返します。
func ChangedFields(old, fetched *Record) []Field {
	var changed []Field
	for _, f := range AllFields {
		if !equalValue(old.Get(f), fetched.Get(f)) {
			changed = append(changed, f)
		}
	}
	return changed
}

func equalValue(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
