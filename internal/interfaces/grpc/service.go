package grpc

import (
	"context"
	"strconv"
	"strings"

	"google.golang.org/grpc"

	"github.com/turtacn/deadline-agent/internal/application/extraction"
	"github.com/turtacn/deadline-agent/internal/domain/calendar"
	"github.com/turtacn/deadline-agent/internal/domain/deadline"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

// ExtractionServiceName is the fully-qualified service name.
const ExtractionServiceName = "deadline.v1.Extraction"

// Full method names.
const (
	MethodExtract      = "/" + ExtractionServiceName + "/Extract"
	MethodExtractBatch = "/" + ExtractionServiceName + "/ExtractBatch"
	MethodRules        = "/" + ExtractionServiceName + "/Rules"
	MethodBusinessDays = "/" + ExtractionServiceName + "/BusinessDays"
)

const maxBusinessDays = 3660

// ExtractRequest resolves one text.
type ExtractRequest struct {
	extraction.ProcessRequest
}

func (r *ExtractRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return errors.InvalidParam("text is required")
	}
	return nil
}

type ExtractBatchRequest struct {
	Requests []extraction.ProcessRequest `json:"requests"`
}

func (r *ExtractBatchRequest) Validate() error {
	if len(r.Requests) == 0 {
		return errors.InvalidParam("requests must not be empty")
	}
	for i, pr := range r.Requests {
		if strings.TrimSpace(pr.Text) == "" {
			return errors.InvalidParam("text is required").WithDetail("requests[" + strconv.Itoa(i) + "]")
		}
	}
	return nil
}

type ExtractBatchResponse struct {
	Results []*deadline.Result `json:"results"`
}

type RulesRequest struct{}

type RulesResponse struct {
	Rules []deadline.RuleInfo `json:"rules"`
}

// BusinessDaysRequest adds Days working days to Start.
type BusinessDaysRequest struct {
	Start calendar.Date `json:"start"`
	Days  int           `json:"days"`
}

func (r *BusinessDaysRequest) Validate() error {
	if r.Start.IsZero() {
		return errors.InvalidParam("start is required")
	}
	if r.Days < 0 || r.Days > maxBusinessDays {
		return errors.InvalidParam("days must be between 0 and " + strconv.Itoa(maxBusinessDays))
	}
	return nil
}

type BusinessDaysResponse struct {
	Start    calendar.Date `json:"start"`
	Days     int           `json:"days"`
	Deadline calendar.Date `json:"deadline"`
}

// ExtractionServer is the server API of deadline.v1.Extraction.
type ExtractionServer interface {
	Extract(context.Context, *ExtractRequest) (*deadline.Result, error)
	ExtractBatch(context.Context, *ExtractBatchRequest) (*ExtractBatchResponse, error)
	Rules(context.Context, *RulesRequest) (*RulesResponse, error)
	BusinessDays(context.Context, *BusinessDaysRequest) (*BusinessDaysResponse, error)
}

// RegisterExtractionServer registers srv on s.
func RegisterExtractionServer(s grpc.ServiceRegistrar, srv ExtractionServer) {
	s.RegisterService(&ExtractionServiceDesc, srv)
}

// ExtractionServiceDesc describes deadline.v1.Extraction. The messages are
// JSON encoded, see CodecName.
var ExtractionServiceDesc = grpc.ServiceDesc{
	ServiceName: ExtractionServiceName,
	HandlerType: (*ExtractionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Extract", Handler: extractHandler},
		{MethodName: "ExtractBatch", Handler: extractBatchHandler},
		{MethodName: "Rules", Handler: rulesHandler},
		{MethodName: "BusinessDays", Handler: businessDaysHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "deadline/v1/extraction",
}

func extractHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ExtractRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExtractionServer).Extract(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodExtract}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExtractionServer).Extract(ctx, req.(*ExtractRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func extractBatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ExtractBatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExtractionServer).ExtractBatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodExtractBatch}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExtractionServer).ExtractBatch(ctx, req.(*ExtractBatchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func rulesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RulesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExtractionServer).Rules(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodRules}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExtractionServer).Rules(ctx, req.(*RulesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func businessDaysHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(BusinessDaysRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExtractionServer).BusinessDays(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodBusinessDays}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExtractionServer).BusinessDays(ctx, req.(*BusinessDaysRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ExtractionService implements ExtractionServer on top of the extraction
// service.
type ExtractionService struct {
	svc extraction.Service
}

func NewExtractionService(svc extraction.Service) *ExtractionService {
	return &ExtractionService{svc: svc}
}

func (s *ExtractionService) Extract(ctx context.Context, req *ExtractRequest) (*deadline.Result, error) {
	return s.svc.Process(ctx, req.ProcessRequest), nil
}

func (s *ExtractionService) ExtractBatch(ctx context.Context, req *ExtractBatchRequest) (*ExtractBatchResponse, error) {
	results, err := s.svc.ProcessBatch(ctx, req.Requests)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ExtractBatchResponse{Results: results}, nil
}

func (s *ExtractionService) Rules(context.Context, *RulesRequest) (*RulesResponse, error) {
	return &RulesResponse{Rules: s.svc.Rules()}, nil
}

func (s *ExtractionService) BusinessDays(_ context.Context, req *BusinessDaysRequest) (*BusinessDaysResponse, error) {
	d, err := s.svc.Calendar().AddBusinessDays(req.Start, req.Days)
	if err != nil {
		return nil, toStatus(err)
	}
	return &BusinessDaysResponse{Start: req.Start, Days: req.Days, Deadline: d}, nil
}

// ExtractionClient is the client API of deadline.v1.Extraction.
type ExtractionClient struct {
	cc grpc.ClientConnInterface
}

func NewExtractionClient(cc grpc.ClientConnInterface) *ExtractionClient {
	return &ExtractionClient{cc: cc}
}

func (c *ExtractionClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *ExtractionClient) Extract(ctx context.Context, in *ExtractRequest, opts ...grpc.CallOption) (*deadline.Result, error) {
	out := new(deadline.Result)
	if err := c.invoke(ctx, MethodExtract, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ExtractionClient) ExtractBatch(ctx context.Context, in *ExtractBatchRequest, opts ...grpc.CallOption) (*ExtractBatchResponse, error) {
	out := new(ExtractBatchResponse)
	if err := c.invoke(ctx, MethodExtractBatch, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ExtractionClient) Rules(ctx context.Context, opts ...grpc.CallOption) (*RulesResponse, error) {
	out := new(RulesResponse)
	if err := c.invoke(ctx, MethodRules, &RulesRequest{}, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ExtractionClient) BusinessDays(ctx context.Context, in *BusinessDaysRequest, opts ...grpc.CallOption) (*BusinessDaysResponse, error) {
	out := new(BusinessDaysResponse)
	if err := c.invoke(ctx, MethodBusinessDays, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
