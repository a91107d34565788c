package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/xela07ax/trustgate/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// RemoteExpert вызывает удаленного эксперта по gRPC. Payload в обе стороны —
// google.protobuf.Struct в JSON-форме AgentOutput.
type RemoteExpert struct {
	agentType domain.AgentType
	conn      grpc.ClientConnInterface
}

func NewRemoteExpert(agentType domain.AgentType, conn grpc.ClientConnInterface) *RemoteExpert {
	return &RemoteExpert{agentType: agentType, conn: conn}
}

func (e *RemoteExpert) Type() domain.AgentType {
	return e.agentType
}

func (e *RemoteExpert) Analyze(ctx context.Context, subject domain.Subject) (domain.AgentOutput, error) {
	req, err := toStruct(analyzeRequest{AgentType: e.agentType, Subject: subject})
	if err != nil {
		return domain.AgentOutput{}, fmt.Errorf("failed to build request: %w", err)
	}

	var header metadata.MD
	resp := new(structpb.Struct)
	if err := e.conn.Invoke(ctx, analyzeMethod, req, resp, grpc.Header(&header)); err != nil {
		if status.Code(err) == codes.ResourceExhausted {
			if after, ok := retryAfter(header); ok {
				return domain.AgentOutput{}, &ThrottleError{RetryAfter: after, Cause: err}
			}
		}
		return domain.AgentOutput{}, fmt.Errorf("expert %s call failed: %w", e.agentType, err)
	}

	var out domain.AgentOutput
	if err := fromStruct(resp, &out); err != nil {
		return domain.AgentOutput{}, fmt.Errorf("expert %s returned malformed output: %w", e.agentType, err)
	}
	return out, nil
}

func retryAfter(md metadata.MD) (time.Duration, bool) {
	vals := md.Get(retryAfterHeader)
	if len(vals) == 0 {
		return 0, false
	}
	secs, err := strconv.Atoi(vals[0])
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func fromStruct(s *structpb.Struct, dst any) error {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
