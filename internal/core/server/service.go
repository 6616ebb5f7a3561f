package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/cpq/internal/types"
	"github.com/solatis/cpq/internal/widget"
)

// Full method names of the widget bridge service.
const (
	ServiceName     = "cpq.widget.v1.WidgetBridge"
	DispatchMethod  = "/" + ServiceName + "/Dispatch"
	SubscribeMethod = "/" + ServiceName + "/Subscribe"
)

// Handler processes inbound widget messages. Implemented by *widget.Bridge.
type Handler interface {
	Handle(ctx context.Context, origin string, msg widget.Message) (*widget.Message, error)
	AllowsOrigin(origin string) bool
}

// BridgeServer is the server API of the widget bridge. Envelopes travel as
// google.protobuf.Struct values shaped {type, data}.
type BridgeServer interface {
	Dispatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Subscribe(*structpb.Struct, grpc.ServerStream) error
}

var bridgeServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BridgeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Dispatch", Handler: dispatchHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
	Metadata: "cpq/widget/v1/bridge.proto",
}

func dispatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BridgeServer).Dispatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DispatchMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BridgeServer).Dispatch(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(BridgeServer).Subscribe(in, stream)
}

// BridgeService serves one widget bridge over gRPC.
type BridgeService struct {
	handler Handler
	events  *Broadcaster
	log     *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// NewBridgeService creates the service.
func NewBridgeService(handler Handler, events *Broadcaster, logger *slog.Logger) (*BridgeService, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}
	if events == nil {
		return nil, fmt.Errorf("events cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BridgeService{
		handler: handler,
		events:  events,
		log:     logger,
		stop:    make(chan struct{}),
	}, nil
}

// Dispatch handles one inbound message. Messages without a reply get an
// empty struct back.
func (s *BridgeService) Dispatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	msg, err := MessageFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	reply, err := s.handler.Handle(ctx, OriginFromContext(ctx), msg)
	if err != nil {
		return nil, statusFromError(err)
	}
	if reply == nil {
		return &structpb.Struct{}, nil
	}
	out, err := StructFromMessage(*reply)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// Subscribe streams outbound events until the client goes away. Each
// subscriber first receives a ready event.
func (s *BridgeService) Subscribe(_ *structpb.Struct, stream grpc.ServerStream) error {
	events, cancel := s.events.subscribe()
	defer cancel()

	if err := s.send(stream, widget.Message{Type: widget.TypeReady}); err != nil {
		return err
	}

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stop:
			return nil
		case msg, ok := <-events:
			if !ok {
				return nil
			}
			if err := s.send(stream, msg); err != nil {
				return err
			}
		}
	}
}

// close ends every open Subscribe stream so a graceful stop can finish.
func (s *BridgeService) close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *BridgeService) send(stream grpc.ServerStream, msg widget.Message) error {
	out, err := StructFromMessage(msg)
	if err != nil {
		s.log.Warn("dropping undeliverable widget event", "type", msg.Type, "error", err)
		return nil
	}
	return stream.SendMsg(out)
}

func statusFromError(err error) error {
	switch {
	case errors.Is(err, widget.ErrOriginNotAllowed):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, widget.ErrUnknownMessage), errors.Is(err, widget.ErrBadPayload):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, types.ErrNoModel):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// StructFromMessage converts a widget envelope to its wire form.
func StructFromMessage(msg widget.Message) (*structpb.Struct, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return out, nil
}

// MessageFromStruct converts the wire form back to a widget envelope.
func MessageFromStruct(s *structpb.Struct) (widget.Message, error) {
	if s == nil {
		return widget.Message{}, fmt.Errorf("empty message")
	}
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return widget.Message{}, fmt.Errorf("decode message: %w", err)
	}
	var msg widget.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return widget.Message{}, fmt.Errorf("decode message: %w", err)
	}
	if msg.Type == "" {
		return widget.Message{}, fmt.Errorf("message has no type")
	}
	return msg, nil
}
