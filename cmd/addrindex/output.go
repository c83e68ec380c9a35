// output.go renders command results as text, JSON or YAML.

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/sonroyaalmerol/addrindex/internal/addrindex"
	"github.com/sonroyaalmerol/addrindex/internal/addritem"
)

var validOutputFormats = []string{"json", "yaml"}

type sourceView struct {
	Type    string `json:"type" yaml:"type"`
	Name    string `json:"name" yaml:"name"`
	Persons *int   `json:"persons,omitempty" yaml:"persons,omitempty"`
	Status  string `json:"status,omitempty" yaml:"status,omitempty"`
}

type emailView struct {
	UID     string `json:"uid" yaml:"uid"`
	Address string `json:"address" yaml:"address"`
	Alias   string `json:"alias,omitempty" yaml:"alias,omitempty"`
	Remarks string `json:"remarks,omitempty" yaml:"remarks,omitempty"`
}

type personView struct {
	UID        string            `json:"uid" yaml:"uid"`
	Name       string            `json:"name" yaml:"name"`
	FirstName  string            `json:"first_name,omitempty" yaml:"first_name,omitempty"`
	LastName   string            `json:"last_name,omitempty" yaml:"last_name,omitempty"`
	Folder     string            `json:"folder,omitempty" yaml:"folder,omitempty"`
	EMails     []emailView       `json:"emails,omitempty" yaml:"emails,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

type groupView struct {
	UID     string   `json:"uid" yaml:"uid"`
	Name    string   `json:"name" yaml:"name"`
	Members []string `json:"members,omitempty" yaml:"members,omitempty"`
}

type sourceDump struct {
	Name    string       `json:"name" yaml:"name"`
	Type    string       `json:"type" yaml:"type"`
	Persons []personView `json:"persons" yaml:"persons"`
	Groups  []groupView  `json:"groups,omitempty" yaml:"groups,omitempty"`
}

func viewEMail(e *addritem.EMail) emailView {
	return emailView{UID: e.UID(), Address: e.Address, Alias: e.Alias(), Remarks: e.Remarks}
}

func viewPerson(p *addritem.Person, folder string) personView {
	v := personView{
		UID:       p.UID(),
		Name:      p.Name(),
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Folder:    folder,
	}
	for _, e := range p.EMails() {
		v.EMails = append(v.EMails, viewEMail(e))
	}
	for _, a := range p.Attributes() {
		if v.Attributes == nil {
			v.Attributes = make(map[string]string)
		}
		v.Attributes[a.Name] = a.Value
	}
	return v
}

// dumpSource flattens a source's tree; each person records the path of the
// folder holding it.
func dumpSource(ds *addrindex.DataSource) sourceDump {
	d := sourceDump{Name: ds.Name(), Type: ds.Type().String(), Persons: []personView{}}
	var walk func(f *addritem.Folder, path string)
	walk = func(f *addritem.Folder, path string) {
		for _, p := range ds.ListPerson(f) {
			d.Persons = append(d.Persons, viewPerson(p, path))
		}
		for _, sub := range ds.ListFolder(f) {
			next := sub.Name()
			if path != "" {
				next = path + "/" + next
			}
			walk(sub, next)
		}
	}
	walk(ds.RootFolder(), "")
	for _, g := range ds.AllGroups() {
		gv := groupView{UID: g.UID(), Name: g.Name()}
		if b := ds.Book(); b != nil {
			for _, e := range b.GroupEMails(g) {
				gv.Members = append(gv.Members, e.Address)
			}
		}
		d.Groups = append(d.Groups, gv)
	}
	return d
}

// encode writes v in the requested structured format.
func encode(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("invalid output format: %s (valid: %v)", format, validOutputFormats)
}
