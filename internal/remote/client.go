// Package remote is the client for the Saving Circle ledger and auth services.
//
// Every method is a single unary call with no retries. Responses are decoded by
// the normalize package, so callers only see domain types; failures are returned
// as *Error.
package remote

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/savingcircle/internal/middleware"
	"github.com/mmynk/savingcircle/internal/models"
	"github.com/mmynk/savingcircle/internal/normalize"
	"github.com/mmynk/savingcircle/pkg/wire"
)

type unaryClient = connect.Client[structpb.Struct, structpb.Struct]

// Client calls the ledger and auth services over Connect with the JSON codec.
type Client struct {
	procedures map[string]*unaryClient
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	interceptors []connect.Interceptor
}

// WithLogger sets the logger used for per-call logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithInterceptors adds Connect interceptors, outermost first.
func WithInterceptors(interceptors ...connect.Interceptor) Option {
	return func(o *options) { o.interceptors = append(o.interceptors, interceptors...) }
}

// NoToken is a TokenSource for anonymous calls.
var NoToken middleware.TokenSource = staticToken("")

type staticToken string

func (s staticToken) Token() string { return string(s) }

// New creates a client for the services at baseURL. tokens supplies the bearer
// token per call; httpClient may be nil to use http.DefaultClient.
func New(httpClient connect.HTTPClient, baseURL string, tokens middleware.TokenSource, opts ...Option) *Client {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if tokens == nil {
		tokens = NoToken
	}

	interceptors := append([]connect.Interceptor{}, o.interceptors...)
	interceptors = append(interceptors, middleware.BearerToken(tokens), middleware.LoggingInterceptor(o.logger))

	baseURL = strings.TrimRight(baseURL, "/")
	c := &Client{procedures: make(map[string]*unaryClient), logger: o.logger}
	for _, procedure := range []string{
		wire.ListMyGroupsProcedure,
		wire.ListDiscoverableGroupsProcedure,
		wire.GetGroupProcedure,
		wire.CreateGroupProcedure,
		wire.JoinGroupProcedure,
		wire.ContributeProcedure,
		wire.RequestWithdrawalProcedure,
		wire.DecideWithdrawalProcedure,
		wire.RegisterProcedure,
		wire.LoginProcedure,
		wire.GetProfileProcedure,
		wire.UpdateProfileProcedure,
	} {
		c.procedures[procedure] = connect.NewClient[structpb.Struct, structpb.Struct](
			httpClient,
			baseURL+procedure,
			connect.WithProtoJSON(),
			connect.WithInterceptors(interceptors...),
		)
	}
	return c
}

func (c *Client) call(ctx context.Context, procedure string, msg *structpb.Struct) (*structpb.Struct, error) {
	if msg == nil {
		msg = &structpb.Struct{}
	}
	resp, err := c.procedures[procedure].CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, wrapError(procedure, err)
	}
	return resp.Msg, nil
}

// ListMine fetches the groups the caller belongs to.
func (c *Client) ListMine(ctx context.Context) ([]models.Group, error) {
	resp, err := c.call(ctx, wire.ListMyGroupsProcedure, nil)
	if err != nil {
		return nil, err
	}
	return normalize.Groups(wire.List(resp, wire.FieldGroups)), nil
}

// ListDiscoverable fetches the groups the caller may join.
func (c *Client) ListDiscoverable(ctx context.Context) ([]models.Group, error) {
	resp, err := c.call(ctx, wire.ListDiscoverableGroupsProcedure, nil)
	if err != nil {
		return nil, err
	}
	return normalize.Groups(wire.List(resp, wire.FieldGroups)), nil
}

// GetGroup fetches one group with members, contributions and withdrawals.
func (c *Client) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	req := wire.NewBuilder().Str(wire.FieldGroupID, groupID).Build()
	resp, err := c.call(ctx, wire.GetGroupProcedure, req)
	if err != nil {
		return models.Group{}, err
	}
	return normalize.Group(wire.Object(resp, wire.FieldGroup)), nil
}

// CreateGroup creates a group administered by the caller.
func (c *Client) CreateGroup(ctx context.Context, name, description string, target decimal.Decimal) (models.Group, error) {
	req := wire.NewBuilder().
		Str(wire.FieldName, name).
		Str(wire.FieldDescription, description).
		Money(wire.FieldTargetAmount, target).
		Build()
	resp, err := c.call(ctx, wire.CreateGroupProcedure, req)
	if err != nil {
		return models.Group{}, err
	}
	return normalize.Group(wire.Object(resp, wire.FieldGroup)), nil
}

// JoinGroup adds the caller to a group.
func (c *Client) JoinGroup(ctx context.Context, groupID string) error {
	req := wire.NewBuilder().Str(wire.FieldGroupID, groupID).Build()
	_, err := c.call(ctx, wire.JoinGroupProcedure, req)
	return err
}

// Contribute records a deposit and returns the service's record of it.
func (c *Client) Contribute(ctx context.Context, groupID string, amount decimal.Decimal, description string) (models.Transaction, error) {
	req := wire.NewBuilder().
		Str(wire.FieldGroupID, groupID).
		Money(wire.FieldAmount, amount).
		StrOpt(wire.FieldDescription, description).
		Build()
	resp, err := c.call(ctx, wire.ContributeProcedure, req)
	if err != nil {
		return models.Transaction{}, err
	}
	return normalize.Deposit(groupID, wire.Object(resp, wire.FieldContribution)), nil
}

// RequestWithdrawal records a pending withdrawal request.
func (c *Client) RequestWithdrawal(ctx context.Context, groupID string, amount decimal.Decimal, reason string) (models.WithdrawalRequest, error) {
	req := wire.NewBuilder().
		Str(wire.FieldGroupID, groupID).
		Money(wire.FieldAmount, amount).
		StrOpt(wire.FieldReason, reason).
		Build()
	resp, err := c.call(ctx, wire.RequestWithdrawalProcedure, req)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	return normalize.WithdrawalRequest(groupID, wire.Object(resp, wire.FieldWithdrawal)), nil
}

// DecideWithdrawal approves or rejects a pending request.
func (c *Client) DecideWithdrawal(ctx context.Context, requestID string, status models.WithdrawalStatus) (models.WithdrawalRequest, error) {
	req := wire.NewBuilder().
		Str(wire.FieldWithdrawalID, requestID).
		Str(wire.FieldStatus, string(status)).
		Build()
	resp, err := c.call(ctx, wire.DecideWithdrawalProcedure, req)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	return normalize.WithdrawalRequest("", wire.Object(resp, wire.FieldWithdrawal)), nil
}

// Register creates an account and returns it with a session token.
func (c *Client) Register(ctx context.Context, name, email, password, avatar string) (models.User, string, error) {
	req := wire.NewBuilder().
		Str(wire.FieldName, name).
		Str(wire.FieldEmail, email).
		Str(wire.FieldPassword, password).
		StrOpt(wire.FieldAvatar, avatar).
		Build()
	return c.session(ctx, wire.RegisterProcedure, req)
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (models.User, string, error) {
	req := wire.NewBuilder().
		Str(wire.FieldEmail, email).
		Str(wire.FieldPassword, password).
		Build()
	return c.session(ctx, wire.LoginProcedure, req)
}

// Profile returns the signed-in user.
func (c *Client) Profile(ctx context.Context) (models.User, error) {
	resp, err := c.call(ctx, wire.GetProfileProcedure, nil)
	if err != nil {
		return models.User{}, err
	}
	return normalize.User(wire.Object(resp, wire.FieldUser)), nil
}

// UpdateProfile changes the signed-in account. Empty arguments are left
// unchanged. The returned token replaces the current one.
func (c *Client) UpdateProfile(ctx context.Context, name, email, password, avatar string) (models.User, string, error) {
	req := wire.NewBuilder().
		StrOpt(wire.FieldName, name).
		StrOpt(wire.FieldEmail, email).
		StrOpt(wire.FieldPassword, password).
		StrOpt(wire.FieldAvatar, avatar).
		Build()
	return c.session(ctx, wire.UpdateProfileProcedure, req)
}

func (c *Client) session(ctx context.Context, procedure string, req *structpb.Struct) (models.User, string, error) {
	resp, err := c.call(ctx, procedure, req)
	if err != nil {
		return models.User{}, "", err
	}
	return normalize.User(wire.Object(resp, wire.FieldUser)), wire.String(resp, wire.FieldToken), nil
}
