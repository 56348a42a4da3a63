package provider

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/halluprobe/internal/config"
)

// CompleteMethod is the full gRPC method name of the local inference service.
const CompleteMethod = "/halluprobe.v1.ModelService/Complete"

// #region service
// ModelServiceClient is the client side of the inference service. Requests and
// responses are google.protobuf.Struct: {prompt, model, max_tokens,
// temperature} in, {text} out.
type ModelServiceClient interface {
	Complete(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type modelServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewModelServiceClient wraps a connection.
func NewModelServiceClient(cc grpc.ClientConnInterface) ModelServiceClient {
	return &modelServiceClient{cc: cc}
}

func (c *modelServiceClient) Complete(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, CompleteMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ModelServiceServer is the server side of the inference service.
type ModelServiceServer interface {
	Complete(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// RegisterModelServiceServer registers srv on s.
func RegisterModelServiceServer(s grpc.ServiceRegistrar, srv ModelServiceServer) {
	s.RegisterService(&modelServiceDesc, srv)
}

var modelServiceDesc = grpc.ServiceDesc{
	ServiceName: "halluprobe.v1.ModelService",
	HandlerType: (*ModelServiceServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Complete",
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return srv.(ModelServiceServer).Complete(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CompleteMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return srv.(ModelServiceServer).Complete(ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}},
	Streams:  []grpc.StreamDesc{},
	Metadata: "halluprobe/v1/model.proto",
}

// #endregion service

// #region client-struct
// CodecClient wraps the gRPC connection to a local inference service.
type CodecClient struct {
	conn   *grpc.ClientConn
	client ModelServiceClient
	model  string
	opts   Options
}

// #endregion client-struct

// #region constructor
// NewCodecClient connects to the inference service at cfg.Addr.
func NewCodecClient(cfg config.CodecConfig, opts Options) (*CodecClient, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("codec: empty address")
	}
	conn, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", cfg.Addr, err)
	}
	return &CodecClient{
		conn:   conn,
		client: NewModelServiceClient(conn),
		model:  cfg.Model,
		opts:   opts,
	}, nil
}

// NewCodecClientWithService creates a CodecClient with an injected service implementation.
// Used for testing without a real gRPC connection.
func NewCodecClientWithService(svc ModelServiceClient, model string, opts Options) *CodecClient {
	return &CodecClient{client: svc, model: model, opts: opts}
}

// #endregion constructor

func (c *CodecClient) Name() string  { return "codec" }
func (c *CodecClient) Model() string { return c.model }

// #region close
// Close shuts down the gRPC connection.
func (c *CodecClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region complete
// Complete sends a prompt to the inference service.
func (c *CodecClient) Complete(ctx context.Context, prompt string) (Completion, error) {
	start := time.Now()
	req, err := structpb.NewStruct(map[string]any{
		"prompt":      prompt,
		"model":       c.model,
		"max_tokens":  c.opts.MaxTokens,
		"temperature": c.opts.Temperature,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("build complete request: %w", err)
	}

	resp, err := c.client.Complete(ctx, req)
	if err != nil {
		return Completion{}, fmt.Errorf("complete rpc: %w", err)
	}
	text, ok := resp.GetFields()["text"]
	if !ok {
		return Completion{}, fmt.Errorf("complete rpc: response has no text field")
	}
	return since(start, text.GetStringValue()), nil
}

// #endregion complete
