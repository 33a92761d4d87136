package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// The scheduling query service exchanges google.protobuf.Struct messages so
// callers need no generated stubs.

const (
	ServiceName = "scheduling.v1.SchedulingQueryService"

	validateSessionMethod     = "/" + ServiceName + "/ValidateSession"
	summarizeSessionsMethod   = "/" + ServiceName + "/SummarizeSessions"
	getGroupScheduleMethod    = "/" + ServiceName + "/GetGroupSchedule"
	generateAssignmentsMethod = "/" + ServiceName + "/GenerateAssignments"
)

type SchedulingQueryServiceServer interface {
	ValidateSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SummarizeSessions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetGroupSchedule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GenerateAssignments(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterSchedulingQueryServiceServer(s grpc.ServiceRegistrar, srv SchedulingQueryServiceServer) {
	s.RegisterService(&schedulingQueryServiceDesc, srv)
}

var schedulingQueryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SchedulingQueryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ValidateSession", Handler: unaryHandler(validateSessionMethod, SchedulingQueryServiceServer.ValidateSession)},
		{MethodName: "SummarizeSessions", Handler: unaryHandler(summarizeSessionsMethod, SchedulingQueryServiceServer.SummarizeSessions)},
		{MethodName: "GetGroupSchedule", Handler: unaryHandler(getGroupScheduleMethod, SchedulingQueryServiceServer.GetGroupSchedule)},
		{MethodName: "GenerateAssignments", Handler: unaryHandler(generateAssignmentsMethod, SchedulingQueryServiceServer.GenerateAssignments)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "scheduling/v1/scheduling.proto",
}

type unaryMethod func(SchedulingQueryServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		server := srv.(SchedulingQueryServiceServer)
		if interceptor == nil {
			return call(server, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(server, ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type SchedulingQueryServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSchedulingQueryServiceClient(cc grpc.ClientConnInterface) *SchedulingQueryServiceClient {
	return &SchedulingQueryServiceClient{cc: cc}
}

func (c *SchedulingQueryServiceClient) ValidateSession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, validateSessionMethod, in, opts...)
}

func (c *SchedulingQueryServiceClient) SummarizeSessions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, summarizeSessionsMethod, in, opts...)
}

func (c *SchedulingQueryServiceClient) GetGroupSchedule(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, getGroupScheduleMethod, in, opts...)
}

func (c *SchedulingQueryServiceClient) GenerateAssignments(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, generateAssignmentsMethod, in, opts...)
}

func (c *SchedulingQueryServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
