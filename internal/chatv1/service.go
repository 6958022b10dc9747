package chatv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Full method names, used by interceptors to select methods.
const (
	ChatService_CreateThread_FullMethodName      = "/chat.v1.ChatService/CreateThread"
	ChatService_RegisterPushToken_FullMethodName = "/chat.v1.ChatService/RegisterPushToken"
	ChatService_ListThreads_FullMethodName       = "/chat.v1.ChatService/ListThreads"
	ChatService_GetHistory_FullMethodName        = "/chat.v1.ChatService/GetHistory"
	ChatService_ChatStream_FullMethodName        = "/chat.v1.ChatService/ChatStream"
)

type (
	ChatService_ListThreadsServer = grpc.ServerStreamingServer[ThreadSummary]
	ChatService_GetHistoryServer  = grpc.ServerStreamingServer[ChatStreamResponse]
	ChatService_ChatStreamServer  = grpc.BidiStreamingServer[ChatStreamRequest, ChatStreamResponse]

	ChatService_ListThreadsClient = grpc.ServerStreamingClient[ThreadSummary]
	ChatService_GetHistoryClient  = grpc.ServerStreamingClient[ChatStreamResponse]
	ChatService_ChatStreamClient  = grpc.BidiStreamingClient[ChatStreamRequest, ChatStreamResponse]
)

// ChatServiceServer is the server API for chat.v1.ChatService.
type ChatServiceServer interface {
	CreateThread(context.Context, *CreateThreadRequest) (*CreateThreadResponse, error)
	RegisterPushToken(context.Context, *RegisterPushTokenRequest) (*RegisterPushTokenResponse, error)
	ListThreads(*ListThreadsRequest, ChatService_ListThreadsServer) error
	GetHistory(*GetHistoryRequest, ChatService_GetHistoryServer) error
	ChatStream(ChatService_ChatStreamServer) error
}

// UnimplementedChatServiceServer can be embedded to satisfy ChatServiceServer.
type UnimplementedChatServiceServer struct{}

func (UnimplementedChatServiceServer) CreateThread(context.Context, *CreateThreadRequest) (*CreateThreadResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CreateThread not implemented")
}
func (UnimplementedChatServiceServer) RegisterPushToken(context.Context, *RegisterPushTokenRequest) (*RegisterPushTokenResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method RegisterPushToken not implemented")
}
func (UnimplementedChatServiceServer) ListThreads(*ListThreadsRequest, ChatService_ListThreadsServer) error {
	return status.Errorf(codes.Unimplemented, "method ListThreads not implemented")
}
func (UnimplementedChatServiceServer) GetHistory(*GetHistoryRequest, ChatService_GetHistoryServer) error {
	return status.Errorf(codes.Unimplemented, "method GetHistory not implemented")
}
func (UnimplementedChatServiceServer) ChatStream(ChatService_ChatStreamServer) error {
	return status.Errorf(codes.Unimplemented, "method ChatStream not implemented")
}

// RegisterChatServiceServer registers srv on s.
func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&ChatService_ServiceDesc, srv)
}

func _ChatService_CreateThread_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CreateThreadRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServiceServer).CreateThread(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ChatService_CreateThread_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServiceServer).CreateThread(ctx, req.(*CreateThreadRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ChatService_RegisterPushToken_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RegisterPushTokenRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServiceServer).RegisterPushToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ChatService_RegisterPushToken_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServiceServer).RegisterPushToken(ctx, req.(*RegisterPushTokenRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ChatService_ListThreads_Handler(srv any, stream grpc.ServerStream) error {
	m := new(ListThreadsRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ChatServiceServer).ListThreads(m, &grpc.GenericServerStream[ListThreadsRequest, ThreadSummary]{ServerStream: stream})
}

func _ChatService_GetHistory_Handler(srv any, stream grpc.ServerStream) error {
	m := new(GetHistoryRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ChatServiceServer).GetHistory(m, &grpc.GenericServerStream[GetHistoryRequest, ChatStreamResponse]{ServerStream: stream})
}

func _ChatService_ChatStream_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(ChatServiceServer).ChatStream(&grpc.GenericServerStream[ChatStreamRequest, ChatStreamResponse]{ServerStream: stream})
}

// ChatService_ServiceDesc is the grpc.ServiceDesc for chat.v1.ChatService.
var ChatService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "chat.v1.ChatService",
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateThread", Handler: _ChatService_CreateThread_Handler},
		{MethodName: "RegisterPushToken", Handler: _ChatService_RegisterPushToken_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "ListThreads", Handler: _ChatService_ListThreads_Handler, ServerStreams: true},
		{StreamName: "GetHistory", Handler: _ChatService_GetHistory_Handler, ServerStreams: true},
		{StreamName: "ChatStream", Handler: _ChatService_ChatStream_Handler, ServerStreams: true, ClientStreams: true},
	},
	Metadata: "chat/v1/chat.json",
}

// ChatServiceClient is the client API for chat.v1.ChatService. Dial with
// WithJSONCodec.
type ChatServiceClient interface {
	CreateThread(ctx context.Context, in *CreateThreadRequest, opts ...grpc.CallOption) (*CreateThreadResponse, error)
	RegisterPushToken(ctx context.Context, in *RegisterPushTokenRequest, opts ...grpc.CallOption) (*RegisterPushTokenResponse, error)
	ListThreads(ctx context.Context, in *ListThreadsRequest, opts ...grpc.CallOption) (ChatService_ListThreadsClient, error)
	GetHistory(ctx context.Context, in *GetHistoryRequest, opts ...grpc.CallOption) (ChatService_GetHistoryClient, error)
	ChatStream(ctx context.Context, opts ...grpc.CallOption) (ChatService_ChatStreamClient, error)
}

type chatServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewChatServiceClient returns a client over cc.
func NewChatServiceClient(cc grpc.ClientConnInterface) ChatServiceClient {
	return &chatServiceClient{cc: cc}
}

func (c *chatServiceClient) CreateThread(ctx context.Context, in *CreateThreadRequest, opts ...grpc.CallOption) (*CreateThreadResponse, error) {
	out := new(CreateThreadResponse)
	if err := c.cc.Invoke(ctx, ChatService_CreateThread_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatServiceClient) RegisterPushToken(ctx context.Context, in *RegisterPushTokenRequest, opts ...grpc.CallOption) (*RegisterPushTokenResponse, error) {
	out := new(RegisterPushTokenResponse)
	if err := c.cc.Invoke(ctx, ChatService_RegisterPushToken_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatServiceClient) ListThreads(ctx context.Context, in *ListThreadsRequest, opts ...grpc.CallOption) (ChatService_ListThreadsClient, error) {
	stream, err := c.cc.NewStream(ctx, &ChatService_ServiceDesc.Streams[0], ChatService_ListThreads_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[ListThreadsRequest, ThreadSummary]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *chatServiceClient) GetHistory(ctx context.Context, in *GetHistoryRequest, opts ...grpc.CallOption) (ChatService_GetHistoryClient, error) {
	stream, err := c.cc.NewStream(ctx, &ChatService_ServiceDesc.Streams[1], ChatService_GetHistory_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[GetHistoryRequest, ChatStreamResponse]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *chatServiceClient) ChatStream(ctx context.Context, opts ...grpc.CallOption) (ChatService_ChatStreamClient, error) {
	stream, err := c.cc.NewStream(ctx, &ChatService_ServiceDesc.Streams[2], ChatService_ChatStream_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[ChatStreamRequest, ChatStreamResponse]{ClientStream: stream}, nil
}
