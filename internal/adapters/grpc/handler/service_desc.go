package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// RegistryServiceName は gRPC のサービス名です。
const RegistryServiceName = "companyregistry.v1.CompanyRegistryService"

const (
	getCompanyMethod  = "/" + RegistryServiceName + "/GetCompany"
	subscribeMethod   = "/" + RegistryServiceName + "/Subscribe"
	unsubscribeMethod = "/" + RegistryServiceName + "/Unsubscribe"
	createUserMethod  = "/" + RegistryServiceName + "/CreateUser"
)

// RegistryServer は CompanyRegistryService のサーバー実装が満たすインターフェースです。
// メッセージは protobuf の well-known types で表現します。
type RegistryServer interface {
	GetCompany(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Subscribe(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
	Unsubscribe(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
	CreateUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RegisterRegistryServer は srv を s に登録します。
func RegisterRegistryServer(s grpc.ServiceRegistrar, srv RegistryServer) {
	s.RegisterService(&RegistryServiceDesc, srv)
}

// RegistryServiceDesc は CompanyRegistryService のサービス定義です。
var RegistryServiceDesc = grpc.ServiceDesc{
	ServiceName: RegistryServiceName,
	HandlerType: (*RegistryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetCompany", Handler: getCompanyHandler},
		{MethodName: "Subscribe", Handler: subscribeHandler},
		{MethodName: "Unsubscribe", Handler: unsubscribeHandler},
		{MethodName: "CreateUser", Handler: createUserHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "companyregistry/v1/registry.proto",
}

func getCompanyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RegistryServer).GetCompany(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getCompanyMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RegistryServer).GetCompany(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func subscribeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RegistryServer).Subscribe(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: subscribeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RegistryServer).Subscribe(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func unsubscribeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RegistryServer).Unsubscribe(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: unsubscribeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RegistryServer).Unsubscribe(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func createUserHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RegistryServer).CreateUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: createUserMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RegistryServer).CreateUser(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RegistryClient は CompanyRegistryService のクライアントです。
type RegistryClient struct {
	cc grpc.ClientConnInterface
}

// NewRegistryClient は RegistryClient を生成します。
func NewRegistryClient(cc grpc.ClientConnInterface) *RegistryClient {
	return &RegistryClient{cc: cc}
}

// GetCompany は会社レコードを取得します。useCache が false の場合は保存済みレコードの鮮度に関わらず再取得させます。
func (c *RegistryClient) GetCompany(ctx context.Context, code string, useCache bool, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		"code":      structpb.NewStringValue(code),
		"use_cache": structpb.NewBoolValue(useCache),
	}}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getCompanyMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Subscribe は購読を登録します。
func (c *RegistryClient) Subscribe(ctx context.Context, userID, code string, opts ...grpc.CallOption) error {
	return c.invokeSubscription(ctx, subscribeMethod, userID, code, opts...)
}

// Unsubscribe は購読を解除します。
func (c *RegistryClient) Unsubscribe(ctx context.Context, userID, code string, opts ...grpc.CallOption) error {
	return c.invokeSubscription(ctx, unsubscribeMethod, userID, code, opts...)
}

// CreateUser はユーザーを作成し、作成されたユーザーを返します。
func (c *RegistryClient) CreateUser(ctx context.Context, email, name string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{"email": email, "name": name})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, createUserMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RegistryClient) invokeSubscription(ctx context.Context, method, userID, code string, opts ...grpc.CallOption) error {
	in, err := structpb.NewStruct(map[string]any{"user_id": userID, "code": code})
	if err != nil {
		return err
	}
	return c.cc.Invoke(ctx, method, in, new(emptypb.Empty), opts...)
}
