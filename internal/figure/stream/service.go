package stream

import (
	"context"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/skintrack/internal/figure/tracking"
)

const (
	serviceName         = "skintrack.telemetry.Telemetry"
	streamSamplesMethod = "/" + serviceName + "/StreamSamples"
)

// TelemetryServer is the server side of the telemetry service. Messages
// are google.protobuf.Struct, so no generated code is involved.
//
//	service Telemetry {
//	  rpc StreamSamples(google.protobuf.Struct) returns (stream google.protobuf.Struct);
//	}
type TelemetryServer interface {
	StreamSamples(req *structpb.Struct, stream grpc.ServerStream) error
}

var telemetryServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*TelemetryServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    "StreamSamples",
		Handler:       streamSamplesHandler,
		ServerStreams: true,
	}},
	Metadata: "skintrack/telemetry",
}

func streamSamplesHandler(srv any, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(TelemetryServer).StreamSamples(req, stream)
}

// RegisterTelemetryServer registers srv with a gRPC server.
func RegisterTelemetryServer(s grpc.ServiceRegistrar, srv TelemetryServer) {
	s.RegisterService(&telemetryServiceDesc, srv)
}

// SubscribeOptions select what a subscriber receives.
type SubscribeOptions struct {
	// Every forwards one sample in Every; 0 and 1 forward all.
	Every int
}

func (o SubscribeOptions) request() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"every": float64(o.Every)})
}

// SampleStream receives samples from a subscription.
type SampleStream struct {
	cs grpc.ClientStream
}

// Recv blocks for the next sample. It returns io.EOF when the server ends
// the stream.
func (s *SampleStream) Recv() (tracking.Sample, error) {
	m := new(structpb.Struct)
	if err := s.cs.RecvMsg(m); err != nil {
		return tracking.Sample{}, err
	}
	return SampleFromStruct(m)
}

// Subscribe opens a sample stream on conn. Cancelling ctx ends it.
func Subscribe(ctx context.Context, conn grpc.ClientConnInterface, opts SubscribeOptions) (*SampleStream, error) {
	cs, err := conn.NewStream(ctx, &telemetryServiceDesc.Streams[0], streamSamplesMethod)
	if err != nil {
		return nil, err
	}
	req, err := opts.request()
	if err != nil {
		return nil, err
	}
	if err := cs.SendMsg(req); err != nil {
		if err == io.EOF {
			// the real error surfaces on RecvMsg
			return &SampleStream{cs: cs}, nil
		}
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return &SampleStream{cs: cs}, nil
}
