package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/docopt/docopt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oba-ldap/winsync/internal/crypto"
	"github.com/oba-ldap/winsync/internal/ldap"
	"github.com/oba-ldap/winsync/internal/logging"
	"github.com/oba-ldap/winsync/internal/winconn"
)

const testConfig = `agreement:
  name: ad1
  host: dc1.example.com
  bindDN: cn=sync,cn=users,dc=example,dc=com
  credentials: sync-secret
  windowsSubtree: ou=people,dc=example,dc=com
logging:
  level: error
  output: stderr
`

type peer struct {
	mu    sync.Mutex
	users map[string]string
	dials int
}

func (p *peer) Dial(_ context.Context, _ winconn.DialOptions) (winconn.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dials++
	return &peerSession{p: p}, nil
}

type peerSession struct {
	p *peer
}

func (s *peerSession) Bind(_ context.Context, req *ldap.BindRequest) (*ldap.BindResponse, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if pw, ok := s.p.users[req.Name]; ok && pw == req.Password {
		return &ldap.BindResponse{LDAPResult: ldap.NewSuccessResult()}, nil
	}
	return &ldap.BindResponse{LDAPResult: ldap.NewErrorResult(ldap.ResultInvalidCredentials, "80090308: LdapErr: DSID-0C09042A")}, nil
}

func (s *peerSession) Add(context.Context, *ldap.AddRequest) (*ldap.Response, error) {
	return &ldap.Response{LDAPResult: ldap.NewErrorResult(ldap.ResultUnwillingToPerform, "")}, nil
}

func (s *peerSession) Modify(context.Context, *ldap.ModifyRequest) (*ldap.Response, error) {
	return &ldap.Response{LDAPResult: ldap.NewErrorResult(ldap.ResultUnwillingToPerform, "")}, nil
}

func (s *peerSession) Delete(context.Context, *ldap.DeleteRequest) (*ldap.Response, error) {
	return &ldap.Response{LDAPResult: ldap.NewErrorResult(ldap.ResultUnwillingToPerform, "")}, nil
}

func (s *peerSession) ModifyDN(context.Context, *ldap.ModifyDNRequest) (*ldap.Response, error) {
	return &ldap.Response{LDAPResult: ldap.NewErrorResult(ldap.ResultUnwillingToPerform, "")}, nil
}

func (s *peerSession) Extended(context.Context, *ldap.ExtendedRequest) (*ldap.ExtendedResponse, error) {
	return nil, ldap.NewLocalError(ldap.ResultNotSupported, errors.New("not supported"))
}

func (s *peerSession) Search(_ context.Context, req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	res := &ldap.SearchResult{Result: ldap.NewSuccessResult()}
	switch {
	case req.BaseObject == "":
		res.Entries = []*ldap.SearchResultEntry{{
			Attributes: []ldap.PartialAttribute{
				{Type: ldap.AttrSupportedControl, Values: ldap.StringsToValues(ldap.OIDDirSync)},
				{Type: ldap.AttrSupportedCapabilities, Values: ldap.StringsToValues(ldap.OIDWin2k3Capability)},
			},
		}}
	case req.BaseObject == "dc=example,dc=com":
		res.Entries = []*ldap.SearchResultEntry{{
			ObjectName: "cn=carol,ou=people,dc=example,dc=com",
			Attributes: []ldap.PartialAttribute{
				{Type: "cn", Values: ldap.StringsToValues("carol")},
			},
		}}
	default:
		res.Entries = []*ldap.SearchResultEntry{{
			ObjectName: req.BaseObject,
			Attributes: []ldap.PartialAttribute{
				{Type: "cn", Values: ldap.StringsToValues("alice")},
				{Type: "objectGUID", Values: [][]byte{{0x00, 0xff, 0x10}}},
			},
		}}
	}
	return res, nil
}

func (s *peerSession) Close() error { return nil }

func withPeer(t *testing.T, p *peer) {
	t.Helper()
	prev := newDialer
	newDialer = func(logging.Logger) winconn.Dialer { return p }
	t.Cleanup(func() { newDialer = prev })
}

func newPeer() *peer {
	return &peer{users: map[string]string{
		"cn=sync,cn=users,dc=example,dc=com": "sync-secret",
		"cn=bob,ou=people,dc=example,dc=com": "hunter2",
	}}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "winsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func runWith(args []string, stdin string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunHelp(t *testing.T) {
	code, out, _ := runWith([]string{"--help"}, "")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Usage:")
}

func TestRunUsageError(t *testing.T) {
	code, _, errOut := runWith([]string{"frobnicate"}, "")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Usage:")
}

func TestDispatchWithoutCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cmd := &command{opts: docopt.Opts{}, stdin: strings.NewReader(""), stdout: &stdout, stderr: &stderr}
	assert.Equal(t, 1, cmd.dispatch())
	assert.Empty(t, stdout.String())
	assert.Equal(t, usage, stderr.String())
	assert.False(t, strings.HasSuffix(stderr.String(), "\n\n"))
}

func TestRunVersion(t *testing.T) {
	code, out, _ := runWith([]string{"version"}, "")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "winsync version "+version)

	code, out, _ = runWith([]string{"version", "--short"}, "")
	assert.Equal(t, 0, code)
	assert.Equal(t, version+"\n", out)
}

func TestProbe(t *testing.T) {
	withPeer(t, newPeer())
	path := writeConfig(t, testConfig)

	code, out, errOut := runWith([]string{"probe", "-c", path}, "")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, `agmt="ad1" (dc1:389)`)
	assert.Contains(t, out, "DirSync:      supported")
	assert.Contains(t, out, "Windows 2003: supported")
	assert.Contains(t, out, "DS5:          unsupported")
	assert.Contains(t, out, "NT4 peer:     false")
}

func TestSessionLogsCarryRequestID(t *testing.T) {
	withPeer(t, newPeer())
	logPath := filepath.Join(t.TempDir(), "winsync.log")
	cfg := strings.Replace(testConfig, "  level: error\n  output: stderr\n",
		"  level: debug\n  format: json\n  output: "+logPath+"\n", 1)
	path := writeConfig(t, cfg)

	readIDs := func() []string {
		data, err := os.ReadFile(logPath)
		require.NoError(t, err)
		var ids []string
		for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
			var entry map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
			id, _ := entry["request_id"].(string)
			require.NotEmpty(t, id, line)
			ids = append(ids, id)
		}
		return ids
	}

	code, _, errOut := runWith([]string{"probe", "-c", path}, "")
	require.Equal(t, 0, code, errOut)
	first := readIDs()
	require.NotEmpty(t, first)
	for _, id := range first {
		assert.Equal(t, first[0], id)
	}

	code, _, errOut = runWith([]string{"probe", "-c", path}, "")
	require.Equal(t, 0, code, errOut)
	second := readIDs()[len(first):]
	require.NotEmpty(t, second)
	assert.NotEqual(t, first[0], second[0], "each invocation gets its own id")
}

func TestProbeBadCredentials(t *testing.T) {
	p := newPeer()
	p.users["cn=sync,cn=users,dc=example,dc=com"] = "rotated"
	withPeer(t, p)
	path := writeConfig(t, testConfig)

	code, _, errOut := runWith([]string{"probe", "-c", path}, "")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "connect to")
}

func TestMissingConfig(t *testing.T) {
	code, _, errOut := runWith([]string{"probe", "-c", filepath.Join(t.TempDir(), "missing.yaml")}, "")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "load config")
}

func TestInvalidConfig(t *testing.T) {
	path := writeConfig(t, "agreement:\n  host: dc1.example.com\n")
	code, _, errOut := runWith([]string{"probe", "-c", path}, "")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "agreement.windowsSubtree")
}

func TestSearch(t *testing.T) {
	withPeer(t, newPeer())
	path := writeConfig(t, testConfig)

	code, out, errOut := runWith([]string{"search", "-c", path, "cn=alice,ou=people,dc=example,dc=com"}, "")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "dn: cn=alice,ou=people,dc=example,dc=com\n")
	assert.Contains(t, out, "cn: alice\n")
	assert.Contains(t, out, "objectGUID:: AP8Q\n")
	assert.Contains(t, out, "# rounds: 1")
}

func TestSearchAttrsOnly(t *testing.T) {
	withPeer(t, newPeer())
	path := writeConfig(t, testConfig)

	code, out, errOut := runWith([]string{"search", "-c", path, "cn=alice,ou=people,dc=example,dc=com", "--attrs-only"}, "")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "cn:\n")
	assert.NotContains(t, out, "cn: alice")
}

func TestSearchBadScope(t *testing.T) {
	code, _, errOut := runWith([]string{"search", "-c", "unused.yaml", "dc=example,dc=com", "--scope=everything"}, "")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unknown scope")
}

func TestReadAttribute(t *testing.T) {
	withPeer(t, newPeer())
	path := writeConfig(t, testConfig)

	code, out, errOut := runWith([]string{"read-attribute", "-c", path, "cn=alice,ou=people,dc=example,dc=com", "cn"}, "")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "cn: alice\n", out)
}

func TestDirSync(t *testing.T) {
	withPeer(t, newPeer())
	path := writeConfig(t, testConfig)

	code, out, errOut := runWith([]string{"dirsync", "-c", path}, "")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "dn: cn=carol,ou=people,dc=example,dc=com\n")
	assert.Contains(t, out, "# cookie: ")
}

func TestCheckPassword(t *testing.T) {
	p := newPeer()
	withPeer(t, p)
	path := writeConfig(t, testConfig)

	code, out, errOut := runWith([]string{"check-password", "-c", path, "cn=bob,ou=people,dc=example,dc=com"}, "hunter2\n")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "password accepted")

	code, out, _ = runWith([]string{"check-password", "-c", path, "cn=bob,ou=people,dc=example,dc=com"}, "wrong\n")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "password rejected")
}

func TestEncryptCredential(t *testing.T) {
	secret, err := crypto.GenerateSecret()
	require.NoError(t, err)
	secretPath := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(secretPath, []byte(hex.EncodeToString(secret)), 0600))

	code, out, errOut := runWith([]string{"encrypt-credential", "--secret-file=" + secretPath}, "s3cret\n")
	require.Equal(t, 0, code, errOut)
	encoded := strings.TrimSpace(out)
	assert.True(t, crypto.IsEncrypted(encoded))

	codec, err := crypto.NewCodecFromSecret(secret)
	require.NoError(t, err)
	plain, err := codec.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", string(plain))
}

func TestEncryptedCredentialsConnect(t *testing.T) {
	secret, err := crypto.GenerateSecret()
	require.NoError(t, err)
	dir := t.TempDir()
	secretPath := filepath.Join(dir, "secret")
	require.NoError(t, os.WriteFile(secretPath, []byte(hex.EncodeToString(secret)), 0600))

	codec, err := crypto.NewCodecFromSecret(secret)
	require.NoError(t, err)
	encoded, err := codec.Encode([]byte("sync-secret"))
	require.NoError(t, err)

	cfg := strings.Replace(testConfig, "credentials: sync-secret", "credentials: \""+encoded+"\"", 1)
	cfg += "credentials:\n  secretFile: " + secretPath + "\n"
	withPeer(t, newPeer())
	path := writeConfig(t, cfg)

	code, _, errOut := runWith([]string{"probe", "-c", path}, "")
	assert.Equal(t, 0, code, errOut)
}

func TestSessionReload(t *testing.T) {
	withPeer(t, newPeer())
	path := writeConfig(t, testConfig)

	cmd := &command{
		opts:   map[string]interface{}{"--config": path, "--log-level": nil},
		stdin:  strings.NewReader(""),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
	s, err := cmd.openSession()
	require.NoError(t, err)
	defer s.close()

	oldCfg := *s.cfg
	newCfg := *s.cfg
	newCfg.Agreement.BindDN = "cn=other,cn=users,dc=example,dc=com"
	newCfg.Logging.Level = "debug"
	s.reload(&oldCfg, &newCfg)

	assert.Equal(t, "cn=other,cn=users,dc=example,dc=com", s.agreement.BindDN())
	assert.Equal(t, logging.LevelDebug, s.log.GetLevel())
}

func TestReadPassword(t *testing.T) {
	pw, err := readPassword("-", strings.NewReader("secret\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "secret", string(pw))

	path := filepath.Join(t.TempDir(), "pw")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0600))
	pw, err = readPassword(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-file", string(pw))
}

func TestWriteValue(t *testing.T) {
	var buf bytes.Buffer
	writeValue(&buf, "cn", []byte("alice"))
	writeValue(&buf, "description", []byte(" leading space"))
	writeValue(&buf, "objectSid", []byte{0x01, 0x05})
	assert.Equal(t, "cn: alice\ndescription:: IGxlYWRpbmcgc3BhY2U=\nobjectSid:: AQU=\n", buf.String())
}
