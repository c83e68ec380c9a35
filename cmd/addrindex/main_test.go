package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sonroyaalmerol/addrindex/internal/addrbook"
	"github.com/sonroyaalmerol/addrindex/internal/config"
)

type testEnv struct {
	t   *testing.T
	dir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return &testEnv{t: t, dir: t.TempDir()}
}

func (e *testEnv) exec(args ...string) (string, error) {
	e.t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--dir", e.dir, "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *testEnv) run(args ...string) string {
	e.t.Helper()
	out, err := e.exec(args...)
	require.NoError(e.t, err, "addrindex %v", args)
	return out
}

func (e *testEnv) writeFile(name, body string) string {
	e.t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(e.t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestListCreatesDefaultBooks(t *testing.T) {
	env := newTestEnv(t)
	out := env.run("list")
	assert.Contains(t, out, "book\tCommon addresses")
	assert.Contains(t, out, "book\tPersonal addresses")
	assert.FileExists(t, filepath.Join(env.dir, config.DefaultIndexFile))
	assert.FileExists(t, filepath.Join(env.dir, addrbook.FileName(2)))
}

func TestAddContactAndShow(t *testing.T) {
	env := newTestEnv(t)
	out := env.run("add-contact", "Personal addresses", "Alice", "alice@x.com")
	assert.Contains(t, out, "Alice")

	out = env.run("show", "Personal addresses")
	assert.Contains(t, out, "Alice\n")
	assert.Contains(t, out, "<alice@x.com>")

	out = env.run("show", "--vcard", "Personal addresses")
	assert.Contains(t, out, "BEGIN:VCARD")
	assert.Contains(t, out, "alice@x.com")

	_, err := env.exec("add-contact", "Nobody", "Bob", "bob@x.com")
	assert.Error(t, err)
	_, err = env.exec("show", "Nobody")
	assert.Error(t, err)
}

func TestAddBook(t *testing.T) {
	env := newTestEnv(t)
	out := env.run("add-book", "Work")
	assert.Contains(t, out, addrbook.FileName(3))
	assert.Contains(t, env.run("list"), "book\tWork")

	_, err := env.exec("add-book", "Work")
	assert.Error(t, err)
}

func TestAddSourceAndRemove(t *testing.T) {
	env := newTestEnv(t)
	vcf := env.writeFile("phone.vcf", "BEGIN:VCARD\nVERSION:3.0\nFN:Bob\nEMAIL:bob@x.com\nEND:VCARD\n")

	env.run("add-source", "vcard", "Phone", vcf)
	out := env.run("list", "--read")
	assert.Contains(t, out, "vcard\tPhone\t1\tsuccess")

	env.run("add-source", "ldap", "Corp", "ldap://ldap.example.com", "--base-dn", "dc=example,dc=com")
	out = env.run("list")
	assert.Contains(t, out, "ldap\tCorp")

	_, err := env.exec("add-source", "vcard", "Broken", env.writeFile("broken.vcf", "nope"))
	assert.Error(t, err)
	env.run("add-source", "--force", "vcard", "Broken", filepath.Join(env.dir, "later.vcf"))

	_, err = env.exec("add-source", "book", "X", "y")
	assert.Error(t, err)

	_, err = env.exec("query", "Phone", "bob")
	assert.Error(t, err, "only LDAP servers can be queried")

	env.run("remove", "Phone")
	assert.NotContains(t, env.run("list"), "Phone")
	assert.FileExists(t, vcf)
}

func TestCheck(t *testing.T) {
	env := newTestEnv(t)
	env.run("list")

	out := env.run("check", filepath.Join(env.dir, addrbook.FileName(1)))
	assert.Contains(t, out, "\tbook")

	vcf := env.writeFile("phone.vcf", "BEGIN:VCARD\nVERSION:3.0\nFN:Bob\nEND:VCARD\n")
	out = env.run("check", vcf)
	assert.Contains(t, out, "\tvcard")

	_, err := env.exec("check", env.writeFile("notes.txt", "hello"))
	assert.Error(t, err)
}

func TestStructuredOutput(t *testing.T) {
	env := newTestEnv(t)
	env.run("add-contact", "Common addresses", "Alice", "alice@x.com", "met at work")

	var sources []sourceView
	require.NoError(t, json.Unmarshal([]byte(env.run("list", "-o", "json", "--read")), &sources))
	require.Len(t, sources, 2)
	assert.Equal(t, "Common addresses", sources[0].Name)
	require.NotNil(t, sources[0].Persons)
	assert.Equal(t, 1, *sources[0].Persons)
	assert.Equal(t, "success", sources[0].Status)

	var dump sourceDump
	require.NoError(t, yaml.Unmarshal([]byte(env.run("show", "-o", "yaml", "Common addresses")), &dump))
	assert.Equal(t, "book", dump.Type)
	require.Len(t, dump.Persons, 1)
	assert.Equal(t, "Alice", dump.Persons[0].Name)
	require.Len(t, dump.Persons[0].EMails, 1)
	assert.Equal(t, "met at work", dump.Persons[0].EMails[0].Remarks)

	_, err := env.exec("list", "-o", "xml")
	assert.Error(t, err)
}
