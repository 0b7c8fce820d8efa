package control

import (
	stdErrors "errors"
	"strings"

	"github.com/core-tools/hsu-compose/pkg/domain"
	"github.com/core-tools/hsu-compose/pkg/errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

var errorCodes = []struct {
	errorType errors.ErrorType
	code      codes.Code
}{
	{errors.ErrorTypeValidation, codes.InvalidArgument},
	{errors.ErrorTypeNotFound, codes.NotFound},
	{errors.ErrorTypeConflict, codes.Aborted},
	{errors.ErrorTypeTimeout, codes.DeadlineExceeded},
	{errors.ErrorTypeCancelled, codes.Canceled},
	{errors.ErrorTypeNetwork, codes.Unavailable},
	{errors.ErrorTypeProcess, codes.Internal},
	{errors.ErrorTypeExitCode, codes.Internal},
	{errors.ErrorTypeIO, codes.Internal},
	{errors.ErrorTypeInternal, codes.Internal},
}

// toStatusError converts a domain error into a gRPC status error
func toStatusError(err error) error {
	if err == nil {
		return nil
	}

	var domainErr *errors.DomainError
	if !stdErrors.As(err, &domainErr) {
		return status.Error(codes.Unknown, err.Error())
	}

	code := codes.Unknown
	for _, entry := range errorCodes {
		if entry.errorType == domainErr.Type {
			code = entry.code
			break
		}
	}
	message := strings.TrimPrefix(domainErr.Error(), string(domainErr.Type)+": ")
	return status.Error(code, message)
}

// fromStatusError converts a gRPC status error back into a domain error
func fromStatusError(err error) error {
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return errors.NewNetworkError("remote call failed", err)
	}

	switch st.Code() {
	case codes.InvalidArgument:
		return errors.NewValidationError(st.Message(), nil)
	case codes.NotFound:
		return errors.NewNotFoundError(st.Message(), nil)
	case codes.Aborted:
		return errors.NewConflictError(st.Message(), nil)
	case codes.DeadlineExceeded:
		return errors.NewTimeoutError(st.Message(), nil)
	case codes.Canceled:
		return errors.NewCancelledError(st.Message(), nil)
	case codes.Unavailable:
		return errors.NewNetworkError(st.Message(), nil)
	default:
		return errors.NewInternalError(st.Message(), nil)
	}
}

func statusToStruct(info domain.StatusInfo) (*structpb.Struct, error) {
	unitList := make([]interface{}, 0, len(info.Units))
	for _, unit := range info.Units {
		unitList = append(unitList, map[string]interface{}{
			"id":           unit.ID,
			"display_name": unit.DisplayName,
			"status":       unit.Status,
			"status_text":  unit.StatusText,
			"mode":         unit.Mode,
			"last_error":   unit.LastError,
			"has_error":    unit.HasError,
			"selected":     unit.Selected,
		})
	}

	return structpb.NewStruct(map[string]interface{}{
		"engine":      info.Engine,
		"image":       info.Image,
		"epoch":       info.Epoch,
		"selected":    info.Selected,
		"tail_active": info.TailActive,
		"units":       unitList,
	})
}

func statusFromStruct(s *structpb.Struct) domain.StatusInfo {
	fields := s.GetFields()
	info := domain.StatusInfo{
		Engine:     fields["engine"].GetStringValue(),
		Image:      fields["image"].GetStringValue(),
		Epoch:      uint64(fields["epoch"].GetNumberValue()),
		Selected:   fields["selected"].GetStringValue(),
		TailActive: fields["tail_active"].GetBoolValue(),
	}

	for _, value := range fields["units"].GetListValue().GetValues() {
		unit := value.GetStructValue().GetFields()
		info.Units = append(info.Units, domain.UnitInfo{
			ID:          unit["id"].GetStringValue(),
			DisplayName: unit["display_name"].GetStringValue(),
			Status:      unit["status"].GetStringValue(),
			StatusText:  unit["status_text"].GetStringValue(),
			Mode:        unit["mode"].GetStringValue(),
			LastError:   unit["last_error"].GetStringValue(),
			HasError:    unit["has_error"].GetBoolValue(),
			Selected:    unit["selected"].GetBoolValue(),
		})
	}
	return info
}

func argsStruct(args map[string]string) (*structpb.Struct, error) {
	fields := make(map[string]interface{}, len(args))
	for key, value := range args {
		fields[key] = value
	}
	return structpb.NewStruct(fields)
}

func argString(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}
