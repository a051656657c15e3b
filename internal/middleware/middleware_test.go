package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/savingcircle/internal/auth"
	"github.com/mmynk/savingcircle/internal/models"
)

const (
	whoAmIProcedure = "/test.v1.TestService/WhoAmI"
	publicProcedure = "/test.v1.TestService/Public"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestServer(t *testing.T, jwtManager *auth.JWTManager) *httptest.Server {
	t.Helper()
	interceptors := connect.WithInterceptors(RequireAuth(jwtManager, publicProcedure), LoggingInterceptor(nil))
	handler := func(ctx context.Context, _ *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
		s, err := structpb.NewStruct(map[string]any{"user_id": GetUserID(ctx), "name": GetName(ctx)})
		if err != nil {
			return nil, err
		}
		return connect.NewResponse(s), nil
	}

	mux := http.NewServeMux()
	mux.Handle(whoAmIProcedure, connect.NewUnaryHandler(whoAmIProcedure, handler, interceptors))
	mux.Handle(publicProcedure, connect.NewUnaryHandler(publicProcedure, handler, interceptors))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func call(t *testing.T, baseURL, procedure, token string) (*structpb.Struct, error) {
	t.Helper()
	client := connect.NewClient[structpb.Struct, structpb.Struct](
		http.DefaultClient,
		baseURL+procedure,
		connect.WithProtoJSON(),
		connect.WithInterceptors(BearerToken(staticToken(token)), LoggingInterceptor(nil)),
	)
	resp, err := client.CallUnary(context.Background(), connect.NewRequest(&structpb.Struct{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func TestRequireAuth(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	server := newTestServer(t, jwtManager)

	token, err := jwtManager.Generate(&models.User{ID: "u1", Email: "ana@example.com", Name: "Ana"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		procedure string
		token     string
		wantCode  connect.Code
		wantUser  string
	}{
		{name: "valid token", procedure: whoAmIProcedure, token: token, wantUser: "u1"},
		{name: "missing token", procedure: whoAmIProcedure, wantCode: connect.CodeUnauthenticated},
		{name: "garbage token", procedure: whoAmIProcedure, token: "garbage", wantCode: connect.CodeUnauthenticated},
		{name: "public procedure", procedure: publicProcedure, wantUser: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := call(t, server.URL, tt.procedure, tt.token)
			if tt.wantCode != 0 {
				var connectErr *connect.Error
				if !errors.As(err, &connectErr) || connectErr.Code() != tt.wantCode {
					t.Fatalf("error = %v, want code %v", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := msg.GetFields()["user_id"].GetStringValue(); got != tt.wantUser {
				t.Errorf("user_id = %q, want %q", got, tt.wantUser)
			}
		})
	}
}

func TestBearerTokenParsing(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr error
	}{
		{header: "Bearer abc", want: "abc"},
		{header: "bearer abc", want: "abc"},
		{header: "", wantErr: auth.ErrMissingToken},
		{header: "Basic abc", wantErr: auth.ErrInvalidToken},
		{header: "Bearer", wantErr: auth.ErrInvalidToken},
	}
	for _, tt := range tests {
		got, err := bearerToken(tt.header)
		if !errors.Is(err, tt.wantErr) || got != tt.want {
			t.Errorf("bearerToken(%q) = %q, %v; want %q, %v", tt.header, got, err, tt.want, tt.wantErr)
		}
	}
}
