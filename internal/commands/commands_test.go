package commands

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/akjtjhklf/fnb-hrms-client/internal/fakeapi"
)

const (
	testOrgKey    = "org-key-7f3a"
	testOrgSecret = "shared-passphrase"
)

type result struct {
	stdout string
	stderr string
	err    error
}

func startBackend(t *testing.T) *fakeapi.Server {
	t.Helper()
	srv := fakeapi.Start(fakeapi.Options{OrgKey: testOrgKey, OrgSecret: testOrgSecret})
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, srv *fakeapi.Server, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hrms.yaml")
	content := fmt.Sprintf(`
api:
  baseurl: %s
auth:
  orgsecret: %s
retry:
  delay: 1ms
  maxdelay: 5ms
log:
  level: warn
%s`, srv.URL(), testOrgSecret, extra)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) result {
	t.Helper()
	root := &cobra.Command{Use: "hrmsctl", SilenceUsage: true, SilenceErrors: true}
	Register(root)
	root.AddCommand(NewVersionCommand("test"))

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func signedIn(cfgPath string, args ...string) []string {
	base := []string{"--config", cfgPath, "-u", fakeapi.DefaultUsername, "-p", fakeapi.DefaultPassword}
	return append(base, args...)
}

func TestRequestCommand(t *testing.T) {
	srv := startBackend(t)
	cfgPath := writeConfig(t, srv, "")

	tests := []struct {
		name         string
		args         []string
		wantErr      bool
		stdoutHas    string
		stderrHas    string
		stdoutAbsent bool
	}{
		{
			name:      "get",
			args:      signedIn(cfgPath, "request", "GET", "/employees"),
			stdoutHas: "Linh Tran",
		},
		{
			name:      "lowercase method with body",
			args:      signedIn(cfgPath, "request", "post", "/employees", "-d", `{"name":"Bao Le","position":"chef"}`),
			stdoutHas: `"id": "emp-4"`,
		},
		{
			name:         "not found is reported as json",
			args:         signedIn(cfgPath, "request", "GET", "/missing"),
			wantErr:      true,
			stderrHas:    `"category": "permanent_client"`,
			stdoutAbsent: true,
		},
		{
			name:         "validation failure keeps server messages",
			args:         signedIn(cfgPath, "request", "POST", "/employees", "-d", `{"name":"Bao Le","position":"astronaut"}`),
			wantErr:      true,
			stderrHas:    `"statusCode": 422`,
			stdoutAbsent: true,
		},
		{
			name:    "unsupported method",
			args:    signedIn(cfgPath, "request", "TRACE", "/employees"),
			wantErr: true,
		},
		{
			name:    "malformed header",
			args:    signedIn(cfgPath, "request", "GET", "/employees", "-H", "no-colon"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, tt.args...)
			if tt.wantErr {
				require.Error(t, res.err)
			} else {
				require.NoError(t, res.err, res.stderr)
			}
			if tt.stdoutHas != "" {
				assert.Contains(t, res.stdout, tt.stdoutHas)
			}
			if tt.stderrHas != "" {
				assert.Contains(t, res.stderr, tt.stderrHas)
			}
			if tt.stdoutAbsent {
				assert.Empty(t, res.stdout)
			}
		})
	}
}

func TestRequestRetriesTransientFailures(t *testing.T) {
	srv := startBackend(t)
	cfgPath := writeConfig(t, srv, "")
	srv.FailNext("/schedule", http.StatusServiceUnavailable, 2)

	res := run(t, signedIn(cfgPath, "request", "GET", "/schedule", "-i")...)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stderr, "HTTP 200 (3 attempts")
	assert.Contains(t, res.stdout, "emp-1")
}

func TestLoginCommand(t *testing.T) {
	srv := startBackend(t)
	cfgPath := writeConfig(t, srv, "")

	t.Run("prints session", func(t *testing.T) {
		res := run(t, signedIn(cfgPath, "login")...)
		require.NoError(t, res.err, res.stderr)
		assert.Contains(t, res.stdout, `"subject": "`+fakeapi.DefaultUsername+`"`)
		assert.Contains(t, res.stdout, `"role": "`+fakeapi.DefaultRole+`"`)
		assert.Contains(t, res.stdout, "expiresAt")
	})

	t.Run("wrong password", func(t *testing.T) {
		res := run(t, "--config", cfgPath, "-u", fakeapi.DefaultUsername, "-p", "nope", "login")
		require.Error(t, res.err)
		assert.Contains(t, res.stderr, `"category": "credential_invalid"`)
		assert.Zero(t, srv.RefreshCalls())
	})

	t.Run("username required", func(t *testing.T) {
		t.Setenv(EnvUsername, "")
		res := run(t, "--config", cfgPath, "login")
		require.Error(t, res.err)
		assert.Contains(t, res.err.Error(), "username is required")
	})

	t.Run("password from environment", func(t *testing.T) {
		t.Setenv(EnvUsername, fakeapi.DefaultUsername)
		t.Setenv(EnvPassword, fakeapi.DefaultPassword)
		res := run(t, "--config", cfgPath, "login")
		require.NoError(t, res.err, res.stderr)
	})
}

func TestMeAndLogoutCommands(t *testing.T) {
	srv := startBackend(t)
	cfgPath := writeConfig(t, srv, "")

	res := run(t, signedIn(cfgPath, "me")...)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, `"orgId": "`+fakeapi.DefaultOrgID+`"`)

	res = run(t, signedIn(cfgPath, "logout")...)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stderr, "Signed out")
	assert.Equal(t, 1, srv.LogoutCalls())
}

func TestFetchCommand(t *testing.T) {
	srv := startBackend(t)
	cfgPath := writeConfig(t, srv, "")

	res := run(t, signedIn(cfgPath, "fetch", "/employees", "/departments")...)
	require.NoError(t, res.err, res.stderr)

	employees := bytes.Index([]byte(res.stdout), []byte("# /employees"))
	departments := bytes.Index([]byte(res.stdout), []byte("# /departments"))
	require.GreaterOrEqual(t, employees, 0)
	assert.Greater(t, departments, employees)
	assert.Contains(t, res.stdout, "kitchen")
}

func TestTelemetryFlag(t *testing.T) {
	tp := otel.GetTracerProvider()
	mp := otel.GetMeterProvider()
	prop := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
		otel.SetTextMapPropagator(prop)
	})

	srv := startBackend(t)
	cfgPath := writeConfig(t, srv, `
observability:
  service:
    name: hrmsctl-e2e
`)

	res := run(t, append([]string{"--telemetry"}, signedIn(cfgPath, "request", "GET", "/departments")...)...)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stderr, "hrmsctl-e2e")
	assert.Contains(t, res.stderr, "hrms.client")
}

func TestMissingConfigFile(t *testing.T) {
	res := run(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "me")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "absent.yaml")
}

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name    string
		raw     []string
		want    map[string]string
		wantErr bool
	}{
		{name: "none", raw: nil, want: nil},
		{name: "trimmed", raw: []string{"Accept-Language:  vi ", "X-Trace: a:b"}, want: map[string]string{"Accept-Language": "vi", "X-Trace": "a:b"}},
		{name: "empty value", raw: []string{"X-Empty:"}, want: map[string]string{"X-Empty": ""}},
		{name: "no colon", raw: []string{"broken"}, wantErr: true},
		{name: "no name", raw: []string{": value"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseHeaders(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVersionCommand(t *testing.T) {
	res := run(t, "version")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "hrmsctl version test")
}
