package vcard

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	govcard "github.com/emersion/go-vcard"
	"github.com/google/uuid"

	"github.com/sonroyaalmerol/addrindex/internal/status"
)

// ValidateVCard reports whether raw holds at least one card a person can be
// built from.
func ValidateVCard(raw []byte) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return errors.New("vcard: no data")
	}
	cards, err := parseAll(raw)
	if err != nil {
		return err
	}
	if len(cards) == 0 {
		return errors.New("vcard: no cards")
	}
	for n, c := range cards {
		if c.Value(govcard.FieldFormattedName) == "" && c.Name() == nil {
			return fmt.Errorf("vcard: card %d has no FN or N", n+1)
		}
	}
	return nil
}

// Probe checks that the file at path holds at least one usable card.
func Probe(path string) status.Code {
	if path == "" {
		return status.NoFile
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return status.OpenFile
	}
	if err := ValidateVCard(raw); err != nil {
		return status.BadFormat
	}
	return status.Success
}

// normalizeCard fills FN from N and a UID when the card lacks them.
func normalizeCard(c govcard.Card) error {
	if c.Value(govcard.FieldFormattedName) == "" {
		if name := c.Name(); name != nil {
			fn := strings.Join(strings.Fields(strings.Join([]string{
				name.GivenName, name.AdditionalName, name.FamilyName,
			}, " ")), " ")
			if fn != "" {
				c.SetValue(govcard.FieldFormattedName, fn)
			}
		}
	}
	if c.Value(govcard.FieldFormattedName) == "" {
		if email := c.Value(govcard.FieldEmail); email != "" {
			c.SetValue(govcard.FieldFormattedName, email)
		} else {
			return errors.New("vcard missing FN and cannot generate from N")
		}
	}

	if c.Value(govcard.FieldUID) == "" {
		c.SetValue(govcard.FieldUID, uuid.NewString())
	}
	return nil
}

// crlf turns bare LF line breaks into CRLF and leaves CRLF alone.
var crlf = strings.NewReplacer("\r\n", "\r\n", "\n", "\r\n")

func parseAll(b []byte) ([]govcard.Card, error) {
	dec := govcard.NewDecoder(strings.NewReader(crlf.Replace(string(b))))
	var out []govcard.Card
	for {
		c, err := dec.Decode()
		switch {
		case errors.Is(err, io.EOF):
			return out, nil
		case err != nil:
			return nil, fmt.Errorf("vcard: card %d: %w", len(out)+1, err)
		}
		out = append(out, c)
	}
}

// Encode writes cards in vCard text form.
func Encode(cards []govcard.Card) ([]byte, error) {
	var buf bytes.Buffer
	enc := govcard.NewEncoder(&buf)
	for _, c := range cards {
		if err := enc.Encode(c); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
