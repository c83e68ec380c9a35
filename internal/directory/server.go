// Package directory exposes an LDAP server as a read-only address data
// source.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/addrindex/internal/addrcache"
	"github.com/sonroyaalmerol/addrindex/internal/addritem"
	"github.com/sonroyaalmerol/addrindex/internal/cache"
	"github.com/sonroyaalmerol/addrindex/internal/config"
	"github.com/sonroyaalmerol/addrindex/internal/status"
)

// Attributes requested for every entry.
const (
	attrCN          = "cn"
	attrDisplayName = "displayName"
	attrGivenName   = "givenName"
	attrSurname     = "sn"
	attrMail        = "mail"
	attrPhone       = "telephoneNumber"
	attrOrg         = "o"
	attrTitle       = "title"
)

var entryAttrs = []string{"dn", attrCN, attrDisplayName, attrGivenName, attrSurname, attrMail, attrPhone, attrOrg, attrTitle}

// attributes copied onto persons as user attributes
var extraAttrs = []string{attrPhone, attrOrg, attrTitle}

type Server struct {
	name    string
	cfg     config.LDAPConfig
	cache   *addrcache.Cache
	results *cache.Cache[string, []*ldap.Entry]
	status  status.Code
	logger  zerolog.Logger
	dial    dialFunc
}

func NewServer(cfg config.LDAPConfig, logger zerolog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		cache:   addrcache.New(),
		results: cache.New[string, []*ldap.Entry](cfg.CacheTTL),
		logger:  logger,
		dial:    dialLDAP,
	}
}

func (s *Server) Name() string { return s.name }

func (s *Server) SetName(name string) {
	s.name = name
	s.cache.SetName(name)
}

func (s *Server) Config() config.LDAPConfig { return s.cfg }

// SetConfig replaces the server settings and forgets everything read with
// the old ones.
func (s *Server) SetConfig(cfg config.LDAPConfig) {
	if cfg.CacheTTL == s.cfg.CacheTTL {
		s.results.Purge()
	} else {
		s.results = cache.New[string, []*ldap.Entry](cfg.CacheTTL)
	}
	s.cfg = cfg
	s.cache.Clear()
	s.cache.SetName(s.name)
}

func (s *Server) Status() status.Code { return s.status }

func (s *Server) ReadFlag() bool { return s.cache.DataRead() }

func (s *Server) ModifyFlag() bool { return false }

func (s *Server) AccessFlag() bool { return s.cache.AccessFlag() }

func (s *Server) SetAccessFlag(v bool) { s.cache.SetAccessFlag(v) }

func (s *Server) RootFolder() *addritem.Folder { return s.cache.Root() }

func (s *Server) ListFolder(f *addritem.Folder) []*addritem.Folder { return s.cache.ListFolder(f) }

func (s *Server) ListPerson(f *addritem.Folder) []*addritem.Person { return s.cache.ListPerson(f) }

func (s *Server) AllPersons() []*addritem.Person { return s.cache.AllPersons() }

func (s *Server) AllGroups() []*addritem.Group { return s.cache.AllGroups() }

func (s *Server) filter() string {
	f := strings.TrimSpace(s.cfg.Criteria)
	if f == "" {
		f = config.DefaultLDAP().Criteria
	}
	if !strings.HasPrefix(f, "(") {
		f = "(" + f + ")"
	}
	return f
}

// ReadData runs the configured search and loads the results into the
// cache. Results are reused while they are fresh in the result cache.
func (s *Server) ReadData(ctx context.Context) status.Code {
	filter := s.filter()
	if _, ok := s.results.Get(filter); ok && s.cache.DataRead() {
		return s.status
	}
	entries, code := s.search(ctx, filter)
	if code != status.Success && code != status.LDAPNoEntries {
		s.status = code
		return code
	}
	s.cache.Clear()
	s.cache.SetName(s.name)
	for _, e := range entries {
		if err := s.cache.AddPerson(nil, toPerson(e)); err != nil {
			s.logger.Debug().Err(err).Str("dn", e.DN).Msg("skipping entry")
		}
	}
	s.cache.SetModified(false)
	s.cache.SetDataRead(true)
	s.status = code
	return code
}

// Query searches for entries whose name or address starts with term. The
// persons returned are not part of the server's cache.
func (s *Server) Query(ctx context.Context, term string) ([]*addritem.Person, status.Code) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, status.BadArgs
	}
	esc := ldap.EscapeFilter(term)
	filter := fmt.Sprintf("(&%s(|(%s=%s*)(%s=%s*)(%s=%s*)(%s=%s*)))", s.filter(),
		attrCN, esc, attrMail, esc, attrGivenName, esc, attrSurname, esc)
	entries, code := s.search(ctx, filter)
	out := make([]*addritem.Person, 0, len(entries))
	for _, e := range entries {
		out = append(out, toPerson(e))
	}
	return out, code
}

func (s *Server) search(ctx context.Context, filter string) ([]*ldap.Entry, status.Code) {
	if v, ok := s.results.Get(filter); ok {
		if len(v) == 0 {
			return nil, status.LDAPNoEntries
		}
		return v, status.Success
	}
	if strings.TrimSpace(s.cfg.URL) == "" {
		return nil, status.BadArgs
	}
	if _, err := ldap.CompileFilter(filter); err != nil {
		s.logger.Debug().Err(err).Str("filter", filter).Msg("bad LDAP filter")
		return nil, status.LDAPCriteria
	}

	conn, closer, err := s.dial(s.cfg)
	if err != nil {
		var be *bindError
		if errors.Is(err, errBadURL) {
			s.logger.Error().Err(err).Str("url", s.cfg.URL).Msg("cannot set up LDAP connection")
			return nil, status.LDAPInit
		}
		if errors.As(err, &be) {
			s.logger.Error().Err(err).Str("bind_dn", s.cfg.BindDN).Msg("LDAP bind failed")
			return nil, status.LDAPBind
		}
		s.logger.Error().Err(err).Str("url", s.cfg.URL).Msg("failed to dial LDAP")
		return nil, status.LDAPConnect
	}

	timeLimit := int(s.cfg.Timeout.Seconds())
	req := ldap.NewSearchRequest(
		s.cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, s.cfg.MaxEntries, timeLimit, false,
		filter,
		entryAttrs,
		nil,
	)

	type result struct {
		res *ldap.SearchResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := conn.Search(req)
		done <- result{res, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		// closing the connection unblocks the search goroutine
		closer()
		<-done
		s.logger.Debug().Str("filter", filter).Msg("LDAP search cancelled")
		return nil, status.LDAPTimeout
	case r = <-done:
		closer()
	}

	if r.err != nil {
		switch {
		case ldap.IsErrorWithCode(r.err, ldap.LDAPResultSizeLimitExceeded) && r.res != nil:
			// keep the entries that did arrive
		case ldap.IsErrorWithCode(r.err, ldap.LDAPResultTimeLimitExceeded),
			ldap.IsErrorWithCode(r.err, ldap.ErrorNetwork) && ctx.Err() != nil:
			return nil, status.LDAPTimeout
		default:
			s.logger.Error().Err(r.err).Str("base_dn", s.cfg.BaseDN).Str("filter", filter).Msg("LDAP search failed")
			return nil, status.LDAPSearch
		}
	}

	entries := r.res.Entries
	s.results.Put(filter, entries)
	if len(entries) == 0 {
		return nil, status.LDAPNoEntries
	}
	return entries, status.Success
}

func toPerson(e *ldap.Entry) *addritem.Person {
	get := func(attr string) string {
		return strings.TrimSpace(e.GetAttributeValue(attr))
	}
	p := addritem.NewPerson(firstNonEmpty(get(attrDisplayName), get(attrCN)))
	p.FirstName = get(attrGivenName)
	p.LastName = get(attrSurname)
	p.ExternalID = e.DN
	if p.Name() == "" {
		p.SetName(strings.TrimSpace(p.FirstName + " " + p.LastName))
	}
	for _, mail := range e.GetAttributeValues(attrMail) {
		if strings.TrimSpace(mail) == "" {
			continue
		}
		p.AddEMail(addritem.NewEMail("", mail, ""))
	}
	for _, attr := range extraAttrs {
		for _, v := range e.GetAttributeValues(attr) {
			if strings.TrimSpace(v) == "" {
				continue
			}
			p.AddAttribute(&addritem.UserAttribute{Name: attr, Value: v})
		}
	}
	return p
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
