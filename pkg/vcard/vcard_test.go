package vcard

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	govcard "github.com/emersion/go-vcard"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/addrindex/internal/addritem"
	"github.com/sonroyaalmerol/addrindex/internal/status"
)

const sample = `BEGIN:VCARD
VERSION:3.0
FN:Alice Liddell
N:Liddell;Alice;;;
NICKNAME:ali
EMAIL;TYPE=HOME:alice@x.com
EMAIL:alice@work.example
TEL:555 0100
UID:urn:uuid:1234
END:VCARD
BEGIN:VCARD
VERSION:3.0
N:Hatter;Mad;;;
EMAIL:hatter@x.com
END:VCARD
`

func writeSample(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contacts.vcf")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestValidateVCard(t *testing.T) {
	assert.NoError(t, ValidateVCard([]byte(sample)))
	assert.Error(t, ValidateVCard(nil))
	assert.Error(t, ValidateVCard([]byte("hello")))
	assert.Error(t, ValidateVCard([]byte("BEGIN:VCARD\nVERSION:3.0\nEMAIL:x@y\nEND:VCARD\n")))
	assert.Error(t, ValidateVCard([]byte(" \r\n\n")))
}

func TestParseAllMixedLineEndings(t *testing.T) {
	mixed := strings.Replace(sample, "\n", "\r\n", 5)
	cards, err := parseAll([]byte(mixed))
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "Alice Liddell", cards[0].Value(govcard.FieldFormattedName))
	assert.Equal(t, "ali", cards[0].Value(govcard.FieldNickname))
	assert.Equal(t, "hatter@x.com", cards[1].Value(govcard.FieldEmail))
}

func TestProbe(t *testing.T) {
	assert.Equal(t, status.Success, Probe(writeSample(t, sample)))
	assert.Equal(t, status.BadFormat, Probe(writeSample(t, "not a card")))
	assert.Equal(t, status.OpenFile, Probe(filepath.Join(t.TempDir(), "missing.vcf")))
	assert.Equal(t, status.NoFile, Probe(""))
}

func TestFileReadData(t *testing.T) {
	f := NewFile(zerolog.Nop())
	f.SetName("phone")
	f.SetPath(writeSample(t, sample))

	require.Equal(t, status.Success, f.ReadData(context.Background()))
	assert.True(t, f.ReadFlag())
	assert.False(t, f.ModifyFlag())

	persons := f.AllPersons()
	require.Len(t, persons, 2)

	alice := persons[0]
	assert.Equal(t, "Alice Liddell", alice.Name())
	assert.Equal(t, "Alice", alice.FirstName)
	assert.Equal(t, "Liddell", alice.LastName)
	assert.Equal(t, "ali", alice.NickName)
	assert.Equal(t, "urn:uuid:1234", alice.ExternalID)
	assert.Equal(t, "555 0100", alice.Attribute("tel"))
	require.Len(t, alice.EMails(), 2)
	assert.Equal(t, "alice@x.com", alice.EMails()[0].Address)
	assert.True(t, strings.EqualFold("home", alice.EMails()[0].Remarks))

	hatter := persons[1]
	assert.Equal(t, "Mad Hatter", hatter.Name())
	assert.NotEmpty(t, hatter.ExternalID)
}

func TestFileReadIsLazy(t *testing.T) {
	path := writeSample(t, sample)
	f := NewFile(zerolog.Nop())
	f.SetPath(path)
	ctx := context.Background()

	require.Equal(t, status.Success, f.ReadData(ctx))
	first := f.AllPersons()
	require.Equal(t, status.Success, f.ReadData(ctx))
	assert.Same(t, first[0], f.AllPersons()[0], "unchanged file is not parsed again")

	one := strings.SplitAfter(sample, "END:VCARD\n")[0]
	require.NoError(t, os.WriteFile(path, []byte(one), 0o600))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	require.Equal(t, status.Success, f.ReadData(ctx))
	assert.Len(t, f.AllPersons(), 1)
}

func TestFileReadErrors(t *testing.T) {
	ctx := context.Background()
	f := NewFile(zerolog.Nop())
	assert.Equal(t, status.NoFile, f.ReadData(ctx))

	f.SetPath(filepath.Join(t.TempDir(), "missing.vcf"))
	assert.Equal(t, status.OpenFile, f.ReadData(ctx))
	assert.Equal(t, status.OpenFile, f.Status())

	path := writeSample(t, sample)
	f.SetPath(path)
	require.Equal(t, status.Success, f.ReadData(ctx))

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	f.SetPath(writeSample(t, sample))
	assert.Equal(t, status.ReadError, f.ReadData(cctx))
	assert.Len(t, f.AllPersons(), 2, "failed read keeps the previous data")
}

func TestFromPersonEncode(t *testing.T) {
	p := addritem.NewPerson("Bob Builder")
	p.FirstName = "Bob"
	p.LastName = "Builder"
	p.AddEMail(addritem.NewEMail("", "bob@x.com", "WORK"))
	p.AddAttribute(&addritem.UserAttribute{Name: "title", Value: "Builder"})
	p.AddAttribute(&addritem.UserAttribute{Name: "bad name", Value: "skipped"})

	data, err := Encode(nil)
	require.NoError(t, err)
	assert.Empty(t, data)

	card := FromPerson(p)
	data, err = Encode([]govcard.Card{card})
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "FN:Bob Builder")
	assert.Contains(t, out, "bob@x.com")
	assert.NotContains(t, out, "skipped")

	cards, err := parseAll(data)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	back := toPerson(cards[0])
	assert.Equal(t, "Bob Builder", back.Name())
	assert.Equal(t, "Builder", back.LastName)
	require.Len(t, back.EMails(), 1)
	assert.True(t, strings.EqualFold("work", back.EMails()[0].Remarks))
	assert.Equal(t, "Builder", back.Attribute("title"))
}
