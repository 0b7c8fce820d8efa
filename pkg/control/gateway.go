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

func NewGRPCClientGateway(grpcClientConnection grpc.ClientConnInterface, logger logging.Logger) domain.Contract {
	return &grpcClientGateway{
		conn:   grpcClientConnection,
		logger: logger,
	}
}

type grpcClientGateway struct {
	conn   grpc.ClientConnInterface
	logger logging.Logger
}

func (gw *grpcClientGateway) Status(ctx context.Context) (domain.StatusInfo, error) {
	response := &structpb.Struct{}
	if err := gw.invoke(ctx, "Status", &emptypb.Empty{}, response); err != nil {
		return domain.StatusInfo{}, err
	}
	return statusFromStruct(response), nil
}

func (gw *grpcClientGateway) Select(ctx context.Context, unitID string) error {
	return gw.unitCall(ctx, "Select", unitID)
}

func (gw *grpcClientGateway) Refresh(ctx context.Context) error {
	return gw.invoke(ctx, "Refresh", &emptypb.Empty{}, &emptypb.Empty{})
}

func (gw *grpcClientGateway) Start(ctx context.Context, unitID string) error {
	return gw.unitCall(ctx, "Start", unitID)
}

func (gw *grpcClientGateway) Stop(ctx context.Context, unitID string) error {
	return gw.unitCall(ctx, "Stop", unitID)
}

func (gw *grpcClientGateway) Restart(ctx context.Context, unitID string) error {
	return gw.unitCall(ctx, "Restart", unitID)
}

func (gw *grpcClientGateway) Down(ctx context.Context, unitID string) error {
	return gw.unitCall(ctx, "Down", unitID)
}

func (gw *grpcClientGateway) Rebuild(ctx context.Context, unitID string) error {
	return gw.unitCall(ctx, "Rebuild", unitID)
}

func (gw *grpcClientGateway) Remove(ctx context.Context, unitID string) error {
	return gw.unitCall(ctx, "Remove", unitID)
}

func (gw *grpcClientGateway) Exec(ctx context.Context, unitID string, command string) (string, error) {
	return gw.textCall(ctx, "Exec", map[string]string{"unit": unitID, "command": command})
}

func (gw *grpcClientGateway) Logs(ctx context.Context, unitID string, stream string) (string, error) {
	return gw.textCall(ctx, "Logs", map[string]string{"unit": unitID, "stream": stream})
}

func (gw *grpcClientGateway) SetMode(ctx context.Context, unitID string, mode string) error {
	request, err := argsStruct(map[string]string{"unit": unitID, "mode": mode})
	if err != nil {
		return err
	}
	return gw.invoke(ctx, "SetMode", request, &emptypb.Empty{})
}

func (gw *grpcClientGateway) unitCall(ctx context.Context, method string, unitID string) error {
	return gw.invoke(ctx, method, wrapperspb.String(unitID), &emptypb.Empty{})
}

func (gw *grpcClientGateway) textCall(ctx context.Context, method string, args map[string]string) (string, error) {
	request, err := argsStruct(args)
	if err != nil {
		return "", err
	}
	response := &wrapperspb.StringValue{}
	if err := gw.invoke(ctx, method, request, response); err != nil {
		return "", err
	}
	return response.GetValue(), nil
}

func (gw *grpcClientGateway) invoke(ctx context.Context, method string, request, response interface{}) error {
	if err := gw.conn.Invoke(ctx, fullMethod(method), request, response); err != nil {
		gw.logger.Errorf("%s client gateway: %v", method, err)
		return fromStatusError(err)
	}
	gw.logger.Debugf("%s client gateway done", method)
	return nil
}
