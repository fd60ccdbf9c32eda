package app

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moweilong/univadmin/internal/mockserver"
)

type env struct {
	srv    *mockserver.Server
	url    string
	dir    string
	config string
}

func newEnv(t *testing.T) *env {
	cfg := mockserver.NewConfig()
	cfg.PageSize = 1
	srv, err := mockserver.NewServer(cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	return &env{srv: srv, url: ts.URL, dir: dir, config: filepath.Join(dir, "missing.yaml")}
}

type result struct {
	out, err string
}

func (e *env) run(stdin string, args ...string) (result, error) {
	cmd := NewUnivAdminCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args,
		"--config", e.config,
		"--server", e.url,
		"--credentials.type", "file",
		"--credentials.dir", e.dir,
		"--no-color",
	))
	err := cmd.Execute()
	return result{out: out.String(), err: errOut.String()}, err
}

func (e *env) login(t *testing.T) {
	res, err := e.run("", "login", "-u", "admin", "-p", "admin")
	require.NoError(t, err, res.err)
	assert.Contains(t, res.out, "Logged in as Admin Scolarité")
}

func TestSessionCommands(t *testing.T) {
	e := newEnv(t)

	_, err := e.run("", "whoami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")

	// password prompted on stdin
	res, err := e.run("secret\n", "login", "-u", "scolarite")
	require.NoError(t, err)
	assert.Contains(t, res.out, "Logged in as Awa Diop")
	assert.Contains(t, res.err, "Password:")

	res, err = e.run("", "whoami")
	require.NoError(t, err)
	assert.Contains(t, res.out, "scolarite")
	assert.Contains(t, res.out, "access_expires:")

	res, err = e.run("", "logout")
	require.NoError(t, err)
	assert.Contains(t, res.out, "Logged out.")

	_, err = e.run("", "whoami")
	assert.Error(t, err)

	_, err = e.run("", "login", "-u", "admin", "-p", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No active account")
}

func TestListAndGet(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	res, err := e.run("", "list", "departements")
	require.NoError(t, err)
	assert.Contains(t, res.out, "CODE")
	assert.Contains(t, res.out, "INFO")
	assert.Contains(t, res.out, "MATH")

	res, err = e.run("", "list", "students", "--filter", "niveau=L1")
	require.NoError(t, err)
	assert.Contains(t, res.out, "Ousmane")
	assert.NotContains(t, res.out, "Fatou")

	res, err = e.run("", "get", "students", "42", "43")
	require.NoError(t, err)
	assert.Contains(t, res.out, "Ndiaye")
	assert.Contains(t, res.out, "Ba")

	res, err = e.run("", "get", "etudiants", "42", "--format", "json")
	require.NoError(t, err)
	var student map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.out), &student))
	assert.Equal(t, "ETU-0042", student["matricule"])

	res, err = e.run("", "list", "salles", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, res.out, "- batiment: A\n")
	assert.Contains(t, res.out, "  code: B204\n")

	res, err = e.run("", "list", "messages")
	require.NoError(t, err)
	assert.Contains(t, res.out, "No results.")

	_, err = e.run("", "get", "students", "x")
	assert.EqualError(t, err, `invalid id "x"`)

	_, err = e.run("", "list", "grades")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown resource "grades"`)

	_, err = e.run("", "list", "students", "--filter", "niveau")
	assert.Error(t, err)
}

func TestWriteCommands(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	payload := filepath.Join(e.dir, "salle.json")
	require.NoError(t, os.WriteFile(payload, []byte(`{"code":"C001","nom":"Labo","capacite":20}`), 0o600))

	res, err := e.run("", "create", "rooms", "-f", payload)
	require.NoError(t, err, res.err)
	assert.Contains(t, res.out, "C001")

	res, err = e.run(`{"code":"C002","capacite":24}`, "update", "salles", "3", "-f", "-")
	require.NoError(t, err, res.err)
	assert.Contains(t, res.out, "C002")

	res, err = e.run("", "delete", "rooms", "3")
	require.NoError(t, err)
	assert.Contains(t, res.out, "deleted rooms 3")

	_, err = e.run("", "delete", "rooms", "3")
	assert.Error(t, err)

	_, err = e.run("", "create", "rooms")
	assert.Error(t, err)
}

func TestValidationErrorOutput(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	_, err := e.run(`{"nom":"Labo"}`, "create", "salles", "-f", "-")
	require.Error(t, err)

	var buf bytes.Buffer
	PrintError(&buf, err)
	assert.Contains(t, buf.String(), "Error:")
	assert.Contains(t, buf.String(), "code:")
}

func TestDownloadAndGenerate(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	target := filepath.Join(e.dir, "releve.pdf")
	res, err := e.run("", "download", "1", "-o", target)
	require.NoError(t, err, res.err)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.Contains(t, res.err, "saved")

	res, err = e.run("", "generate", "1", "42", "-o", "-")
	require.NoError(t, err)
	assert.Equal(t, "Nous certifions que Ndiaye Fatou est inscrit(e).", res.out)
}

func TestExpiredTokenRefreshedBetweenInvocations(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	e.srv.ExpireAccessTokens()
	res, err := e.run("", "list", "salles")
	require.NoError(t, err, res.err)
	assert.Contains(t, res.out, "A101")
}

func TestSessionExpiredHint(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	// drop the stored refresh token, the next 401 ends the session
	cred, err := os.ReadDir(e.dir)
	require.NoError(t, err)
	require.NotEmpty(t, cred)
	e.srv.ExpireAccessTokens()
	for _, f := range cred {
		if strings.HasSuffix(f.Name(), ".json") {
			p := filepath.Join(e.dir, f.Name())
			raw, err := os.ReadFile(p)
			require.NoError(t, err)
			var slots map[string]string
			require.NoError(t, json.Unmarshal(raw, &slots))
			delete(slots, "refresh_token")
			raw, err = json.Marshal(slots)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(p, raw, 0o600))
		}
	}

	res, err := e.run("", "list", "salles")
	require.Error(t, err)
	assert.Contains(t, res.err, "please log in again")
}

func TestConfigFileAndEnv(t *testing.T) {
	e := newEnv(t)
	e.config = filepath.Join(e.dir, "univadmin.yaml")
	require.NoError(t, os.WriteFile(e.config, []byte("format: json\ncache-ttl: 1m\n"), 0o600))
	e.login(t)

	res, err := e.run("", "list", "departements")
	require.NoError(t, err)
	var items []map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.out), &items))
	assert.Len(t, items, 2)

	t.Setenv("UNIVADMIN_FORMAT", "table")
	res, err = e.run("", "list", "departements")
	require.NoError(t, err)
	assert.Contains(t, res.out, "CODE")
}

func TestInvalidOptions(t *testing.T) {
	e := newEnv(t)

	_, err := e.run("", "resources", "--format", "xml", "--timeout", "0s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Contains(t, err.Error(), "timeout must be positive")

	res, err := e.run("", "resources")
	require.NoError(t, err)
	assert.Contains(t, res.out, "/bibliotheque/livres/")
}
