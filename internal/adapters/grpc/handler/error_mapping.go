package handler

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ogurasousui/company-registry/internal/core/company"
	"github.com/ogurasousui/company-registry/internal/core/freshness"
	"github.com/ogurasousui/company-registry/internal/core/source"
	"github.com/ogurasousui/company-registry/internal/core/subscription"
	"github.com/ogurasousui/company-registry/internal/core/user"
)

func toStatusError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, company.ErrInvalidCode),
		errors.Is(err, user.ErrInvalidEmail),
		errors.Is(err, user.ErrInvalidName),
		errors.Is(err, user.ErrInvalidID):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, subscription.ErrAlreadySubscribed),
		errors.Is(err, user.ErrEmailAlreadyExists),
		errors.Is(err, company.ErrCodeAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	// レジストリに存在しないコードは、取得不能より先に NotFound として扱います。
	case errors.Is(err, source.ErrNotFound),
		errors.Is(err, company.ErrCompanyNotFound),
		errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, subscription.ErrSubscriptionNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, freshness.ErrRecordUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
