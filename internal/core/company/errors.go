package company

import "errors"

var (
	// ErrCompanyNotFound は会社が存在しない場合に返却されます。
	ErrCompanyNotFound = errors.New("company not found")
	// ErrCodeAlreadyExists はコード重複時に返却されます。
	ErrCodeAlreadyExists = errors.New("code already exists")
	// ErrInvalidCode は会社コードが不正な場合に返却されます。
	ErrInvalidCode = errors.New("invalid code")
	// ErrReadOnlyTransaction は読み取り専用トランザクション内で書き込みを開始した場合に返却されます。
	ErrReadOnlyTransaction = errors.New("write inside read-only transaction")
)
