package grpcapi

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/gridgate/gridgate/internal/apperrors"
	"github.com/gridgate/gridgate/internal/dispatch"
	"github.com/gridgate/gridgate/internal/logging"
)

// userServiceServer is the handler contract behind the user.UserService
// service descriptor.
type userServiceServer interface {
	GetUser(ctx context.Context, req *GetUserRequest) (*GetUserResponse, error)
	CreateUser(ctx context.Context, req *CreateUserRequest) (*CreateUserResponse, error)
	UpdateUser(ctx context.Context, req *UpdateUserRequest) (*UpdateUserResponse, error)
	DeleteUser(ctx context.Context, req *DeleteUserRequest) (*DeleteUserResponse, error)
	SubscribeUserUpdates(req *SubscribeRequest, stream grpc.ServerStream) error
}

// UserService serves user.UserService over the gateway core.
type UserService struct {
	core   dispatch.Core
	logger logging.ServiceLogger
}

// NewUserService binds the RPC adapter to the core dispatcher.
func NewUserService(d *dispatch.Dispatcher, logger logging.ServiceLogger) *UserService {
	return &UserService{
		core:   d.Protocol("grpc"),
		logger: logger.With(logging.LogFields{"adapter": "grpc"}),
	}
}

func (s *UserService) GetUser(ctx context.Context, req *GetUserRequest) (*GetUserResponse, error) {
	user, err := s.core.GetUser(ctx, req.UserId)
	if err != nil {
		return nil, apperrors.GRPCStatus(err).Err()
	}
	return &GetUserResponse{User: &User{
		Id:    user.Id,
		Name:  user.Name,
		Email: user.Email,
		Age:   user.Age,
	}}, nil
}

func (s *UserService) CreateUser(ctx context.Context, req *CreateUserRequest) (*CreateUserResponse, error) {
	user, err := s.core.CreateUser(ctx, req.Name, req.Email, req.Age)
	if err != nil {
		return nil, apperrors.GRPCStatus(err).Err()
	}
	return &CreateUserResponse{User: &User{
		Id:    user.Id,
		Name:  user.Name,
		Email: user.Email,
		Age:   user.Age,
	}}, nil
}

func (s *UserService) UpdateUser(ctx context.Context, req *UpdateUserRequest) (*UpdateUserResponse, error) {
	user, err := s.core.UpdateUser(ctx, req.UserId, req.Name, req.Email, req.Age)
	if err != nil {
		return nil, apperrors.GRPCStatus(err).Err()
	}
	return &UpdateUserResponse{User: &User{
		Id:    user.Id,
		Name:  user.Name,
		Email: user.Email,
		Age:   user.Age,
	}}, nil
}

func (s *UserService) DeleteUser(ctx context.Context, req *DeleteUserRequest) (*DeleteUserResponse, error) {
	msg, err := s.core.DeleteUser(ctx, req.UserId)
	if err != nil {
		return nil, apperrors.GRPCStatus(err).Err()
	}
	return &DeleteUserResponse{Success: true, Message: msg}, nil
}

// SubscribeUserUpdates streams update events until the client disconnects.
// The stream context is cancelled on disconnect, which stops the producer
// within one tick.
func (s *UserService) SubscribeUserUpdates(req *SubscribeRequest, stream grpc.ServerStream) error {
	sub, err := s.core.SubscribeUserUpdates(stream.Context(), req.UserId, req.IntervalSeconds)
	if err != nil {
		return apperrors.GRPCStatus(err).Err()
	}
	defer sub.Cancel()

	s.logger.Debug("Streaming user updates", logging.LogFields{
		"subscription_id": sub.ID(),
		"user_id":         req.UserId,
	})

	for update := range sub.Updates() {
		msg := &UserUpdate{
			User: &User{
				Id:    update.User.Id,
				Name:  update.User.Name,
				Email: update.User.Email,
				Age:   update.User.Age,
			},
			UpdateType: update.UpdateType,
			Timestamp:  update.Timestamp,
			Sequence:   update.Sequence,
		}
		if err := stream.SendMsg(msg); err != nil {
			return err
		}
	}
	return nil
}

// Greeter serves helloworld.Greeter.
type Greeter struct{}

func (g *Greeter) SayHello(ctx context.Context, req *HelloRequest) (*HelloReply, error) {
	return &HelloReply{Message: fmt.Sprintf("Hello %s!", req.Name)}, nil
}

func (g *Greeter) Echo(ctx context.Context, req *EchoRequest) (*EchoReply, error) {
	return &EchoReply{Message: req.Message}, nil
}

type greeterServer interface {
	SayHello(ctx context.Context, req *HelloRequest) (*HelloReply, error)
	Echo(ctx context.Context, req *EchoRequest) (*EchoReply, error)
}

// NewServer builds a grpc.Server with the gateway codec and both services
// registered.
func NewServer(d *dispatch.Dispatcher, logger logging.ServiceLogger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ForceServerCodec(wireCodec{}))
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&userServiceDesc, NewUserService(d, logger))
	srv.RegisterService(&greeterServiceDesc, &Greeter{})
	return srv
}

func unaryHandler[Req wireMessage](method string, newReq func() Req, invoke func(ctx context.Context, srv any, req Req) (any, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := newReq()
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return invoke(ctx, srv, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		return interceptor(ctx, req, info, func(ctx context.Context, r any) (any, error) {
			return invoke(ctx, srv, r.(Req))
		})
	}
}

var userServiceDesc = grpc.ServiceDesc{
	ServiceName: "user.UserService",
	HandlerType: (*userServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetUser",
			Handler: unaryHandler("/user.UserService/GetUser",
				func() *GetUserRequest { return new(GetUserRequest) },
				func(ctx context.Context, srv any, req *GetUserRequest) (any, error) {
					return srv.(userServiceServer).GetUser(ctx, req)
				}),
		},
		{
			MethodName: "CreateUser",
			Handler: unaryHandler("/user.UserService/CreateUser",
				func() *CreateUserRequest { return new(CreateUserRequest) },
				func(ctx context.Context, srv any, req *CreateUserRequest) (any, error) {
					return srv.(userServiceServer).CreateUser(ctx, req)
				}),
		},
		{
			MethodName: "UpdateUser",
			Handler: unaryHandler("/user.UserService/UpdateUser",
				func() *UpdateUserRequest { return new(UpdateUserRequest) },
				func(ctx context.Context, srv any, req *UpdateUserRequest) (any, error) {
					return srv.(userServiceServer).UpdateUser(ctx, req)
				}),
		},
		{
			MethodName: "DeleteUser",
			Handler: unaryHandler("/user.UserService/DeleteUser",
				func() *DeleteUserRequest { return new(DeleteUserRequest) },
				func(ctx context.Context, srv any, req *DeleteUserRequest) (any, error) {
					return srv.(userServiceServer).DeleteUser(ctx, req)
				}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "SubscribeUserUpdates",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				req := new(SubscribeRequest)
				if err := stream.RecvMsg(req); err != nil {
					return err
				}
				return srv.(userServiceServer).SubscribeUserUpdates(req, stream)
			},
		},
	},
	Metadata: "api/user.proto",
}

var greeterServiceDesc = grpc.ServiceDesc{
	ServiceName: "helloworld.Greeter",
	HandlerType: (*greeterServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SayHello",
			Handler: unaryHandler("/helloworld.Greeter/SayHello",
				func() *HelloRequest { return new(HelloRequest) },
				func(ctx context.Context, srv any, req *HelloRequest) (any, error) {
					return srv.(greeterServer).SayHello(ctx, req)
				}),
		},
		{
			MethodName: "Echo",
			Handler: unaryHandler("/helloworld.Greeter/Echo",
				func() *EchoRequest { return new(EchoRequest) },
				func(ctx context.Context, srv any, req *EchoRequest) (any, error) {
					return srv.(greeterServer).Echo(ctx, req)
				}),
		},
	},
	Metadata: "api/helloworld.proto",
}
