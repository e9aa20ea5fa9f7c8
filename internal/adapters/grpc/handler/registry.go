package handler

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ogurasousui/company-registry/internal/core/company"
	"github.com/ogurasousui/company-registry/internal/core/subscription"
	"github.com/ogurasousui/company-registry/internal/core/user"
)

// CompanyReader は鮮度を保証した会社レコードの読み取りです。
type CompanyReader interface {
	GetOrRefresh(ctx context.Context, code, sourceName string, maxAge time.Duration) (*company.Record, error)
}

// SubscriptionUseCase は購読の登録と解除です。
type SubscriptionUseCase interface {
	Subscribe(ctx context.Context, userID, code string) (*subscription.Subscription, error)
	Unsubscribe(ctx context.Context, userID, code string) error
}

// UserUseCase はユーザー作成です。
type UserUseCase interface {
	CreateUser(ctx context.Context, in user.CreateUserInput) (*user.User, error)
}

// RegistryGrpcHandler は CompanyRegistryService の gRPC 実装です。
type RegistryGrpcHandler struct {
	companies  CompanyReader
	subs       SubscriptionUseCase
	users      UserUseCase
	sourceName string
	maxAge     time.Duration
}

var _ RegistryServer = (*RegistryGrpcHandler)(nil)

// NewRegistryGrpcHandler は RegistryGrpcHandler を生成します。
// GetCompany は sourceName のレジストリから maxAge を鮮度上限として読み取ります。
func NewRegistryGrpcHandler(companies CompanyReader, subs SubscriptionUseCase, users UserUseCase, sourceName string, maxAge time.Duration) *RegistryGrpcHandler {
	return &RegistryGrpcHandler{
		companies:  companies,
		subs:       subs,
		users:      users,
		sourceName: sourceName,
		maxAge:     maxAge,
	}
}

// GetCompany は会社レコードを取得します。古い場合はレジストリから再取得します。
// use_cache が false の場合は鮮度上限を 0 とし、必ず再取得します。
func (h *RegistryGrpcHandler) GetCompany(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	code, err := requiredString(req, "code")
	if err != nil {
		return nil, err
	}
	useCache, err := optionalBool(req, "use_cache", true)
	if err != nil {
		return nil, err
	}

	maxAge := h.maxAge
	if !useCache {
		maxAge = 0
	}

	rec, err := h.companies.GetOrRefresh(ctx, code, h.sourceName, maxAge)
	if err != nil {
		return nil, toStatusError(err)
	}
	return toProtoRecord(rec), nil
}

// Subscribe は購読を登録します。
func (h *RegistryGrpcHandler) Subscribe(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	userID, code, err := subscriptionArgs(req)
	if err != nil {
		return nil, err
	}
	if _, err := h.subs.Subscribe(ctx, userID, code); err != nil {
		return nil, toStatusError(err)
	}
	return &emptypb.Empty{}, nil
}

// Unsubscribe は購読を解除します。
func (h *RegistryGrpcHandler) Unsubscribe(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	userID, code, err := subscriptionArgs(req)
	if err != nil {
		return nil, err
	}
	if err := h.subs.Unsubscribe(ctx, userID, code); err != nil {
		return nil, toStatusError(err)
	}
	return &emptypb.Empty{}, nil
}

// CreateUser はユーザーを作成します。
func (h *RegistryGrpcHandler) CreateUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	email, err := requiredString(req, "email")
	if err != nil {
		return nil, err
	}
	name, err := requiredString(req, "name")
	if err != nil {
		return nil, err
	}

	created, err := h.users.CreateUser(ctx, user.CreateUserInput{Email: email, Name: name})
	if err != nil {
		return nil, toStatusError(err)
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":         structpb.NewStringValue(created.ID),
		"email":      structpb.NewStringValue(created.Email),
		"name":       structpb.NewStringValue(created.Name),
		"created_at": structpb.NewStringValue(created.CreatedAt.UTC().Format(time.RFC3339Nano)),
	}}, nil
}

func subscriptionArgs(req *structpb.Struct) (string, string, error) {
	userID, err := requiredString(req, "user_id")
	if err != nil {
		return "", "", err
	}
	code, err := requiredString(req, "code")
	if err != nil {
		return "", "", err
	}
	return userID, code, nil
}

func requiredString(req *structpb.Struct, key string) (string, error) {
	if req == nil {
		return "", status.Error(codes.InvalidArgument, "request is required")
	}
	v, ok := req.GetFields()[key]
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok || s.StringValue == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s must be a non-empty string", key)
	}
	return s.StringValue, nil
}

func optionalBool(req *structpb.Struct, key string, def bool) (bool, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return def, nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return def, nil
	case *structpb.Value_BoolValue:
		return k.BoolValue, nil
	}
	return false, status.Errorf(codes.InvalidArgument, "%s must be a boolean", key)
}

func toProtoRecord(rec *company.Record) *structpb.Struct {
	if rec == nil {
		return nil
	}

	fields := map[string]*structpb.Value{
		"id":           structpb.NewStringValue(rec.ID),
		"code":         structpb.NewStringValue(rec.Code),
		"last_updated": structpb.NewStringValue(rec.LastUpdated.UTC().Format(time.RFC3339Nano)),
		"created_at":   structpb.NewStringValue(rec.CreatedAt.UTC().Format(time.RFC3339Nano)),
	}
	for _, f := range company.AllFields {
		if v := rec.Get(f); v != nil {
			fields[string(f)] = structpb.NewStringValue(*v)
		} else {
			fields[string(f)] = structpb.NewNullValue()
		}
	}
	return &structpb.Struct{Fields: fields}
}
