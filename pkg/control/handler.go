package control

import (
	"context"

	"github.com/core-tools/hsu-compose/pkg/domain"
	"github.com/core-tools/hsu-compose/pkg/logging"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func RegisterGRPCServerHandler(grpcServerRegistrar grpc.ServiceRegistrar, handler domain.Contract, logger logging.Logger) {
	grpcServerRegistrar.RegisterService(&unitServiceDesc, &grpcServerHandler{
		handler: handler,
		logger:  logger,
	})
}

type grpcServerHandler struct {
	handler domain.Contract
	logger  logging.Logger
}

func (h *grpcServerHandler) Status(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error) {
	info, err := h.handler.Status(ctx)
	if err != nil {
		h.logger.Errorf("Status server handler: %v", err)
		return nil, toStatusError(err)
	}
	response, err := statusToStruct(info)
	if err != nil {
		h.logger.Errorf("Status server handler, encoding: %v", err)
		return nil, toStatusError(err)
	}
	h.logger.Debugf("Status server handler done")
	return response, nil
}

func (h *grpcServerHandler) Select(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	return h.unitCall("Select", in, func(unitID string) error { return h.handler.Select(ctx, unitID) })
}

func (h *grpcServerHandler) Refresh(ctx context.Context, in *emptypb.Empty) (*emptypb.Empty, error) {
	if err := h.handler.Refresh(ctx); err != nil {
		h.logger.Errorf("Refresh server handler: %v", err)
		return nil, toStatusError(err)
	}
	h.logger.Debugf("Refresh server handler done")
	return &emptypb.Empty{}, nil
}

func (h *grpcServerHandler) Start(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	return h.unitCall("Start", in, func(unitID string) error { return h.handler.Start(ctx, unitID) })
}

func (h *grpcServerHandler) Stop(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	return h.unitCall("Stop", in, func(unitID string) error { return h.handler.Stop(ctx, unitID) })
}

func (h *grpcServerHandler) Restart(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	return h.unitCall("Restart", in, func(unitID string) error { return h.handler.Restart(ctx, unitID) })
}

func (h *grpcServerHandler) Down(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	return h.unitCall("Down", in, func(unitID string) error { return h.handler.Down(ctx, unitID) })
}

func (h *grpcServerHandler) Rebuild(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	return h.unitCall("Rebuild", in, func(unitID string) error { return h.handler.Rebuild(ctx, unitID) })
}

func (h *grpcServerHandler) Remove(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	return h.unitCall("Remove", in, func(unitID string) error { return h.handler.Remove(ctx, unitID) })
}

func (h *grpcServerHandler) Exec(ctx context.Context, in *structpb.Struct) (*wrapperspb.StringValue, error) {
	output, err := h.handler.Exec(ctx, argString(in, "unit"), argString(in, "command"))
	if err != nil {
		h.logger.Errorf("Exec server handler: %v", err)
		return nil, toStatusError(err)
	}
	h.logger.Debugf("Exec server handler done")
	return wrapperspb.String(output), nil
}

func (h *grpcServerHandler) Logs(ctx context.Context, in *structpb.Struct) (*wrapperspb.StringValue, error) {
	text, err := h.handler.Logs(ctx, argString(in, "unit"), argString(in, "stream"))
	if err != nil {
		h.logger.Errorf("Logs server handler: %v", err)
		return nil, toStatusError(err)
	}
	h.logger.Debugf("Logs server handler done")
	return wrapperspb.String(text), nil
}

func (h *grpcServerHandler) SetMode(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	if err := h.handler.SetMode(ctx, argString(in, "unit"), argString(in, "mode")); err != nil {
		h.logger.Errorf("SetMode server handler: %v", err)
		return nil, toStatusError(err)
	}
	h.logger.Debugf("SetMode server handler done")
	return &emptypb.Empty{}, nil
}

func (h *grpcServerHandler) unitCall(method string, in *wrapperspb.StringValue, call func(unitID string) error) (*emptypb.Empty, error) {
	if err := call(in.GetValue()); err != nil {
		h.logger.Errorf("%s server handler: %v", method, err)
		return nil, toStatusError(err)
	}
	h.logger.Debugf("%s server handler done", method)
	return &emptypb.Empty{}, nil
}
