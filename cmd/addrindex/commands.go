package main

import (
	"fmt"
	"io"
	"strings"

	govcard "github.com/emersion/go-vcard"
	"github.com/spf13/cobra"

	"github.com/sonroyaalmerol/addrindex/internal/addrbook"
	"github.com/sonroyaalmerol/addrindex/internal/addrindex"
	"github.com/sonroyaalmerol/addrindex/internal/addritem"
	"github.com/sonroyaalmerol/addrindex/internal/directory"
	"github.com/sonroyaalmerol/addrindex/internal/jpilot"
	"github.com/sonroyaalmerol/addrindex/internal/status"
	"github.com/sonroyaalmerol/addrindex/pkg/vcard"
)

// --- list ---

func (a *app) newListCmd() *cobra.Command {
	var read bool
	c := &cobra.Command{
		Use:   "list",
		Short: "List the configured data sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var views []sourceView
			if read {
				for _, r := range a.index.ReadAll(cmd.Context()) {
					n := len(r.DataSource.AllPersons())
					views = append(views, sourceView{
						Type:    r.DataSource.Type().String(),
						Name:    r.DataSource.Name(),
						Persons: &n,
						Status:  r.Status.String(),
					})
				}
			} else {
				for _, ds := range a.index.DataSources() {
					views = append(views, sourceView{Type: ds.Type().String(), Name: ds.Name()})
				}
			}

			out := cmd.OutOrStdout()
			if a.output != "" {
				return encode(out, a.output, views)
			}
			for _, v := range views {
				if v.Persons == nil {
					fmt.Fprintf(out, "%s\t%s\n", v.Type, v.Name)
					continue
				}
				fmt.Fprintf(out, "%s\t%s\t%d\t%s\n", v.Type, v.Name, *v.Persons, v.Status)
			}
			return nil
		},
	}
	c.Flags().BoolVarP(&read, "read", "r", false, "read every source and show its person count")
	return c
}

// --- show ---

func (a *app) newShowCmd() *cobra.Command {
	var asVCard bool
	c := &cobra.Command{
		Use:   "show <source>",
		Short: "Print the folders, persons and groups of a data source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.sourceByName(args[0])
			if err != nil {
				return err
			}
			if code := ds.Load(cmd.Context()); code != status.Success && code != status.LDAPNoEntries {
				return fmt.Errorf("read %s: %w", args[0], code)
			}
			out := cmd.OutOrStdout()
			if asVCard {
				return writeVCards(out, ds.AllPersons())
			}
			if a.output != "" {
				return encode(out, a.output, dumpSource(ds))
			}
			printFolder(out, ds, ds.RootFolder(), 0)
			for _, g := range ds.AllGroups() {
				fmt.Fprintf(out, "group %s\n", g.Name())
				if b := ds.Book(); b != nil {
					for _, e := range b.GroupEMails(g) {
						fmt.Fprintf(out, "  %s\n", formatEMail(e))
					}
				}
			}
			return nil
		},
	}
	c.Flags().BoolVar(&asVCard, "vcard", false, "export the persons as vCards instead")
	return c
}

func printFolder(out io.Writer, ds *addrindex.DataSource, f *addritem.Folder, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, p := range ds.ListPerson(f) {
		printPerson(out, indent, p)
	}
	for _, sub := range ds.ListFolder(f) {
		fmt.Fprintf(out, "%s%s/\n", indent, sub.Name())
		printFolder(out, ds, sub, depth+1)
	}
}

func printPerson(out io.Writer, indent string, p *addritem.Person) {
	fmt.Fprintf(out, "%s%s\n", indent, p.Name())
	for _, e := range p.EMails() {
		fmt.Fprintf(out, "%s  %s\n", indent, formatEMail(e))
	}
}

func formatEMail(e *addritem.EMail) string {
	if e.Alias() == "" {
		return "<" + e.Address + ">"
	}
	return fmt.Sprintf("<%s> (%s)", e.Address, e.Alias())
}

func writeVCards(out io.Writer, persons []*addritem.Person) error {
	cards := make([]govcard.Card, 0, len(persons))
	for _, p := range persons {
		cards = append(cards, vcard.FromPerson(p))
	}
	data, err := vcard.Encode(cards)
	if err != nil {
		return fmt.Errorf("encode vCards: %w", err)
	}
	_, err = out.Write(data)
	return err
}

// --- query ---

func (a *app) newQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <server> <term>",
		Short: "Search an LDAP server for names or addresses starting with term",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.sourceByName(args[0])
			if err != nil {
				return err
			}
			srv := ds.LDAP()
			if srv == nil {
				return fmt.Errorf("%s is not an LDAP server", args[0])
			}
			persons, code := srv.Query(cmd.Context(), args[1])
			if code != status.Success && code != status.LDAPNoEntries {
				return fmt.Errorf("query %s: %w", args[0], code)
			}
			for _, p := range persons {
				printPerson(cmd.OutOrStdout(), "", p)
			}
			return nil
		},
	}
}

// --- check ---

func (a *app) newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Report which kind of address file a path holds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, code := probe(cmd, args[0])
			if t == addrindex.TypeNone {
				return fmt.Errorf("%s: %w", args[0], code)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", args[0], t)
			return nil
		},
	}
}

// probe tries each file format in turn. The book status is reported when
// nothing matches since that is the native format.
func probe(cmd *cobra.Command, path string) (addrindex.Type, status.Code) {
	code := addrbook.Probe(cmd.Context(), path)
	switch {
	case code == status.Success:
		return addrindex.TypeBook, code
	case jpilot.Probe(path) == status.Success:
		return addrindex.TypeJPilot, status.Success
	case vcard.Probe(path) == status.Success:
		return addrindex.TypeVCard, status.Success
	}
	return addrindex.TypeNone, code
}

// --- add-book ---

func (a *app) newAddBookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-book <name>",
		Short: "Create an empty local address book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return fmt.Errorf("book name is empty")
			}
			if a.index.FindDataSource(name) != nil {
				return fmt.Errorf("a data source named %q already exists", name)
			}
			b := addrbook.New(a.logger)
			b.SetName(name)
			b.SetPath(a.index.FilePath())
			file, err := b.GuessNextFile()
			if err != nil {
				return fmt.Errorf("scan %s: %w", a.index.FilePath(), err)
			}
			b.SetFile(file)
			b.Cache().SetModified(true)
			if code := b.Save(); code != status.Success {
				return fmt.Errorf("write %s: %w", b.FullPath(), code)
			}
			b.Cache().SetDataRead(true)
			a.index.AddDataSource(addrindex.TypeBook, b)
			if err := a.persist(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, b.FullPath())
			return nil
		},
	}
}

// --- add-source ---

func (a *app) newAddSourceCmd() *cobra.Command {
	var (
		labels []string
		baseDN string
		force  bool
	)
	c := &cobra.Command{
		Use:   "add-source <vcard|jpilot|ldap> <name> <file-or-url>",
		Short: "Register a read-only data source",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, name, location := addrindex.ParseType(args[0]), args[1], args[2]
			if a.index.FindDataSource(name) != nil {
				return fmt.Errorf("a data source named %q already exists", name)
			}

			var raw addrindex.Backend
			switch t {
			case addrindex.TypeVCard:
				if code := vcard.Probe(location); code != status.Success && !force {
					return fmt.Errorf("%s: %w", location, code)
				}
				v := vcard.NewFile(a.logger)
				v.SetName(name)
				v.SetPath(location)
				raw = v
			case addrindex.TypeJPilot:
				if code := jpilot.Probe(location); code != status.Success && !force {
					return fmt.Errorf("%s: %w", location, code)
				}
				j := jpilot.New(a.logger)
				j.SetName(name)
				j.SetPath(location)
				for _, l := range labels {
					if !j.AddCustomLabel(l) {
						return fmt.Errorf("cannot use custom label %q (at most %d, no repeats)", l, jpilot.MaxCustomLabels)
					}
				}
				raw = j
			case addrindex.TypeLDAP:
				cfg := a.cfg.LDAP
				cfg.URL = location
				if baseDN != "" {
					cfg.BaseDN = baseDN
				}
				s := directory.NewServer(cfg, a.logger)
				s.SetName(name)
				raw = s
			default:
				return fmt.Errorf("unsupported source type %q", args[0])
			}

			if a.index.AddDataSource(t, raw) == nil {
				return fmt.Errorf("%s sources are not available", t)
			}
			return a.persist()
		},
	}
	c.Flags().StringSliceVar(&labels, "custom-label", nil, "J-Pilot custom field label holding an address (repeatable)")
	c.Flags().StringVar(&baseDN, "base-dn", "", "LDAP search base (default $LDAP_BASE_DN)")
	c.Flags().BoolVarP(&force, "force", "f", false, "register the file even if it cannot be read yet")
	return c
}

// --- remove ---

func (a *app) newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <source>",
		Short: "Unregister a data source; its file is left on disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.sourceByName(args[0])
			if err != nil {
				return err
			}
			removed := a.index.RemoveDataSource(ds)
			if removed == nil {
				return fmt.Errorf("%s is not registered", args[0])
			}
			removed.Free()
			return a.persist()
		},
	}
}

// --- add-contact ---

func (a *app) newAddContactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-contact <book> <name> <address> [remarks]",
		Short: "Add a person with one address to a local book",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			var remarks string
			if len(args) == 4 {
				remarks = args[3]
			}
			p, code := a.index.AddContact(cmd.Context(), args[0], args[1], args[2], remarks)
			if code != status.Success {
				return fmt.Errorf("add contact to %s: %w", args[0], code)
			}
			if code := a.index.SaveAllBooks(); code != status.Success {
				return fmt.Errorf("save %s: %w", args[0], code)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.UID(), p.Name())
			return nil
		},
	}
}
