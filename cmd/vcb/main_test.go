package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	issuerSeed = "0101010101010101010101010101010101010101010101010101010101010101"
	statusSeed = "0202020202020202020202020202020202020202020202020202020202020202"
	listID     = "https://dmv.example/status/revocation/0"
)

type env struct {
	t      *testing.T
	dir    string
	config string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	return &env{t: t, dir: dir, config: writeConfig(t, dir, "cas")}
}

func writeConfig(t *testing.T, dir, cas string) string {
	t.Helper()
	cfg := "log:\n  level: error\n  format: text\n" +
		"keys:\n  dir: " + filepath.Join(dir, "keys") + "\n" +
		"storage:\n  backends:\n    - name: localfs\n      dir: " + filepath.Join(dir, cas) + "\n"
	path := filepath.Join(dir, cas+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func (e *env) path(name string) string { return filepath.Join(e.dir, name) }

func (e *env) write(name, content string) string {
	e.t.Helper()
	p := e.path(name)
	require.NoError(e.t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func (e *env) run(args ...string) (int, string, string) {
	e.t.Helper()
	return e.runWith(e.config, args...)
}

func (e *env) runWith(config string, args ...string) (int, string, string) {
	e.t.Helper()
	var out, errOut bytes.Buffer
	code := run(append([]string{"--config", config}, args...), &out, &errOut)
	return code, out.String(), errOut.String()
}

func (e *env) mustRun(args ...string) string {
	e.t.Helper()
	code, out, errOut := e.run(args...)
	require.Equal(e.t, 0, code, "vcb %s: %s", strings.Join(args, " "), errOut)
	return out
}

// issuerSetup creates issuer and status keys, a trust list holding both and
// an empty published revocation list.
func (e *env) issuerSetup() string {
	e.t.Helper()
	e.mustRun("key", "init", "--name", "dmv", "--key-id", "did:web:dmv.example#k1", "--seed-hex", issuerSeed)
	e.mustRun("key", "init", "--name", "dmvstatus", "--key-id", "did:web:dmv.example#status", "--seed-hex", statusSeed)
	trust := e.path("trust.txt")
	e.mustRun("trust", "add", "--list", trust, "--name", "dmv", "--trust-role", "issuer")
	e.mustRun("trust", "add", "--list", trust, "--name", "dmvstatus", "--trust-role", "status")
	e.mustRun("status", "issue", "--list-id", listID, "--signer", "dmvstatus")
	return trust
}

func (e *env) encodeAlice(extra ...string) string {
	e.t.Helper()
	claimsFile := e.write("claims.yaml", "name: Alice\nid: 42\n")
	out := e.path("alice.bin")
	args := append([]string{
		"encode", "--claims", claimsFile, "--signer", "dmv",
		"--status-base-url", "https://dmv.example/status", "--status-index", "42",
		"--out", out,
	}, extra...)
	e.mustRun(args...)
	return out
}

func verifyReport(t *testing.T, out string) map[string]any {
	t.Helper()
	var rep map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rep), out)
	return rep
}

func TestRunUsage(t *testing.T) {
	e := newEnv(t)

	code, _, _ := e.run()
	assert.Equal(t, 2, code)

	code, _, errOut := e.run("frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "unknown command")

	code, _, errOut = e.run("encode", "--signer", "dmv")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "missing --claims")

	code, _, _ = e.run("verify", "--no-such-flag", "x")
	assert.Equal(t, 2, code)
}

func TestConfigValidation(t *testing.T) {
	e := newEnv(t)
	bad := e.write("bad.yaml", "log:\n  format: xml\nverify:\n  compliance: lax\n")
	code, _, errOut := e.runWith(bad, "key", "list")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "log.format")
	assert.Contains(t, errOut, "verify.compliance")

	code, _, _ = e.run("--log-level", "loud", "key", "list")
	assert.Equal(t, 2, code)
}

func TestKeyLifecycle(t *testing.T) {
	e := newEnv(t)
	out := e.mustRun("key", "init", "--name", "dmv", "--key-id", "did:web:dmv.example#k1", "--seed-hex", issuerSeed)
	assert.Contains(t, out, "Key-Id: did:web:dmv.example#k1")

	code, _, _ := e.run("key", "init", "--name", "dmv", "--seed-hex", issuerSeed)
	assert.Equal(t, 1, code, "existing key without --force")

	e.mustRun("key", "derive", "--from", "dmv", "--role", "status")

	out = e.mustRun("key", "list", "--json")
	var keys []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &keys))
	require.Len(t, keys, 1)
	assert.Equal(t, "dmv", keys[0]["identifier"])
	assert.Equal(t, []any{"status"}, keys[0]["roles"])

	out = e.mustRun("key", "export", "--name", "dmv", "--role", "status", "--json")
	var rep map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, "did:web:dmv.example#k1/status", rep["keyId"])
	assert.Equal(t, "ed25519", rep["algorithm"])
	assert.True(t, strings.HasPrefix(rep["publicKey"].(string), "u"))
}

func TestEncodeVerifyRevoke(t *testing.T) {
	e := newEnv(t)
	trust := e.issuerSetup()
	payload := e.encodeAlice()

	b, err := os.ReadFile(payload)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(b), 800)

	code, out, errOut := e.run("verify", payload, "--trust-list", trust, "--json")
	require.Equal(t, 0, code, errOut)
	rep := verifyReport(t, out)
	assert.Equal(t, "verified", rep["outcome"])
	assert.Equal(t, "valid", rep["status"])
	assert.Equal(t, true, rep["accepted"])
	claims := rep["claims"].(map[string]any)
	assert.Equal(t, "Alice", claims["name"])
	assert.Equal(t, float64(42), claims["id"])

	e.mustRun("status", "set", "--list-id", listID, "--index", "42", "--signer", "dmvstatus")

	code, out, _ = e.run("verify", payload, "--trust-list", trust, "--json")
	assert.Equal(t, 1, code)
	rep = verifyReport(t, out)
	assert.Equal(t, "rejected", rep["outcome"])
	assert.Equal(t, "Revoked", rep["kind"])
	assert.Nil(t, rep["claims"])

	e.mustRun("status", "set", "--list-id", listID, "--index", "42", "--clear", "--signer", "dmvstatus")
	code, _, _ = e.run("verify", payload, "--trust-list", trust)
	assert.Equal(t, 0, code)
}

func TestVerifyUntrustedKey(t *testing.T) {
	e := newEnv(t)
	e.issuerSetup()
	payload := e.encodeAlice()

	empty := e.write("empty.txt", "-----BEGIN VCB TRUST LIST-----\nMETA\nVersion: 1\nSpec: xdao-vcb-trustlist-1\n\nTRUST\n-----END VCB TRUST LIST-----\n")
	code, out, _ := e.run("verify", payload, "--trust-list", empty, "--json")
	assert.Equal(t, 1, code)
	rep := verifyReport(t, out)
	assert.Equal(t, "rejected", rep["outcome"])
	assert.Equal(t, "KeyNotFound", rep["kind"])
}

func TestVerifyStrictWithoutStatus(t *testing.T) {
	e := newEnv(t)
	trust := e.issuerSetup()
	claimsFile := e.write("nostatus.yaml", "name: Bob\n")
	payload := e.path("bob.bin")
	e.mustRun("encode", "--claims", claimsFile, "--signer", "dmv", "--out", payload)

	code, out, _ := e.run("verify", payload, "--trust-list", trust, "--json")
	assert.Equal(t, 0, code)
	assert.Equal(t, "unconfirmed", verifyReport(t, out)["outcome"])

	code, out, _ = e.run("verify", payload, "--trust-list", trust, "--mode", "strict", "--json")
	assert.Equal(t, 1, code)
	rep := verifyReport(t, out)
	assert.Equal(t, false, rep["accepted"])
	assert.Equal(t, "UNCONFIRMED", rep["error"].(map[string]any)["code"])
}

func TestQRRoundTrip(t *testing.T) {
	e := newEnv(t)
	trust := e.issuerSetup()
	payload := e.encodeAlice()

	text := strings.TrimSpace(e.mustRun("qr", "encode", payload))
	assert.True(t, strings.HasPrefix(text, "VC1-R"))

	back := e.path("back.bin")
	e.mustRun("qr", "decode", text, "--out", back)
	want, err := os.ReadFile(payload)
	require.NoError(t, err)
	got, err := os.ReadFile(back)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	code, _, errOut := e.run("verify", text, "--trust-list", trust)
	assert.Equal(t, 0, code, errOut)
}

func TestEncodeCapacity(t *testing.T) {
	e := newEnv(t)
	e.issuerSetup()
	claimsFile := e.write("big.yaml", "name: Alice\nnote: "+strings.Repeat("x", 64)+"\n")
	code, _, errOut := e.run("encode", "--claims", claimsFile, "--signer", "dmv", "--qr", "--max-bytes", "80")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "remove at least")

	code, out, _ := e.run("encode", "--claims", claimsFile, "--signer", "dmv", "--qr", "--max-bytes", "80", "--json")
	assert.Equal(t, 1, code)
	rep := verifyReport(t, out)
	assert.Equal(t, float64(80), rep["limit"])
	assert.Greater(t, rep["overage"], float64(0))
	body := rep["error"].(map[string]any)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", body["code"])
	assert.Equal(t, "VCB-PAYLOAD-001", body["ruleId"])
}

func TestOpticalBinding(t *testing.T) {
	e := newEnv(t)
	trust := e.issuerSetup()
	mrz := e.write("mrz.txt", "IAUTO0000007010SRC0000000701<<\n8804192M2601058NOT<<<<<<<<<<<5\nSMITH<<JOHN<<<<<<<<<<<<<<<<<<<\n")
	payload := e.encodeAlice("--mrz", mrz)

	code, _, errOut := e.run("verify", payload, "--trust-list", trust, "--mrz", mrz)
	assert.Equal(t, 0, code, errOut)

	other := e.write("other.txt", "IAUTO0000007010SRC0000000701<<\n8804192M2601058NOT<<<<<<<<<<<5\nSMITH<<JANE<<<<<<<<<<<<<<<<<<<\n")
	code, out, _ := e.run("verify", payload, "--trust-list", trust, "--mrz", other, "--json")
	assert.Equal(t, 1, code)
	assert.Equal(t, "rejected", verifyReport(t, out)["outcome"])
}

func TestBundleMovesStatusLists(t *testing.T) {
	e := newEnv(t)
	trust := e.issuerSetup()
	payload := e.encodeAlice()
	e.mustRun("status", "set", "--list-id", listID, "--index", "42", "--signer", "dmvstatus")

	archive := e.path("lists.tar")
	e.mustRun("bundle", "export", listID, "--out", archive)

	mirror := writeConfig(t, e.dir, "mirror")
	code, out, errOut := e.runWith(mirror, "bundle", "import", archive)
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, listID+"\n", out)

	code, out, _ = e.runWith(mirror, "verify", payload, "--trust-list", trust, "--json")
	assert.Equal(t, 1, code)
	assert.Equal(t, "Revoked", verifyReport(t, out)["kind"])

	out = e.mustRun("status", "show", "--list-id", listID, "--trust-list", trust, "--json")
	var rep map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, []any{float64(42)}, rep["set"])
}

const dlFields = `DAC: "JOHN"
DAD: "NONE"
DAG: "123 MAIN ST"
DAI: "ANYVILLE"
DAJ: "UTO"
DAK: "F87P20000"
DAQ: "F987654321"
DAU: "069 IN"
DAY: "BRO"
DBA: "04192030"
DBB: "04191988"
DBC: "1"
DBD: "01012024"
DCA: "C"
DCB: "NONE"
DCD: "NONE"
DCF: "UTODOCDISCRIM"
DCG: "UTO"
DCS: "SMITH"
DDE: "N"
DDF: "N"
DDG: "N"
`

func TestDLIDFileCarriesPayload(t *testing.T) {
	e := newEnv(t)
	trust := e.issuerSetup()
	fields := e.write("dl.yaml", dlFields)
	card := e.path("card.dlid")
	e.encodeAlice("--aamva", fields, "--aamva-elements", "DAC,DCS,DAQ", "--dlid-out", card)

	b, err := os.ReadFile(card)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "@\n\x1e\rANSI 636000"))

	code, out, errOut := e.run("verify", card, "--trust-list", trust, "--aamva-index", "uggAg", "--json")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "uggAg", verifyReport(t, out)["claims"].(map[string]any)["protectedComponentIndex"])

	other := e.write("other.yaml", strings.Replace(dlFields, `"JOHN"`, `"JANE"`, 1))
	code, out, _ = e.run("verify", card, "--trust-list", trust, "--aamva", other, "--aamva-index", "uggAg", "--json")
	assert.Equal(t, 1, code)
	assert.Equal(t, "rejected", verifyReport(t, out)["outcome"])

	code, _, _ = e.run("encode", "--claims", fields, "--signer", "dmv", "--dlid-out", card)
	assert.Equal(t, 2, code, "--dlid-out without --aamva")
}
