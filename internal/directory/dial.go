package directory

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/sonroyaalmerol/addrindex/internal/config"
)

// searcher is the part of *ldap.Conn a Server needs.
type searcher interface {
	Search(*ldap.SearchRequest) (*ldap.SearchResult, error)
}

// dialFunc opens a bound connection and returns it with its closer.
type dialFunc func(cfg config.LDAPConfig) (searcher, func(), error)

// bindError marks a failure after the connection was established.
type bindError struct{ err error }

func (e *bindError) Error() string { return "bind: " + e.err.Error() }

func (e *bindError) Unwrap() error { return e.err }

// errBadURL is returned before any network traffic when the URL is unusable.
var errBadURL = errors.New("LDAP URL must start with ldap:// or ldaps://")

func dialLDAP(cfg config.LDAPConfig) (searcher, func(), error) {
	conn, err := dialLDAPAuto(cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Timeout > 0 {
		conn.SetTimeout(cfg.Timeout)
	}
	closer := func() { conn.Close() }
	if cfg.BindDN != "" {
		if err := conn.Bind(cfg.BindDN, cfg.BindPassword); err != nil {
			closer()
			return nil, nil, &bindError{err: err}
		}
	}
	return conn, closer, nil
}

func tlsConfigFor(cfg config.LDAPConfig, hostPort string) *tls.Config {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	if host, _, err := net.SplitHostPort(hostPort); err == nil && host != "" {
		tlsConfig.ServerName = host
	} else {
		tlsConfig.ServerName = hostPort
	}
	return tlsConfig
}

func dialLDAPAuto(cfg config.LDAPConfig) (*ldap.Conn, error) {
	u := strings.TrimSpace(cfg.URL)
	if u == "" {
		return nil, errBadURL
	}

	isLDAPS := strings.HasPrefix(strings.ToLower(u), "ldaps://")
	isLDAP := strings.HasPrefix(strings.ToLower(u), "ldap://")

	if !isLDAP && !isLDAPS {
		return nil, fmt.Errorf("%q: %w", u, errBadURL)
	}

	if isLDAPS {
		hostPort := u[len("ldaps://"):]
		return ldap.DialURL(u, ldap.DialWithTLSConfig(tlsConfigFor(cfg, hostPort)))
	}

	conn, err := ldap.DialURL(u)
	if err != nil {
		return nil, err
	}

	if cfg.RequireTLS {
		hostPort := u[len("ldap://"):]
		if err := conn.StartTLS(tlsConfigFor(cfg, hostPort)); err != nil {
			conn.Close()
			return nil, fmt.Errorf("StartTLS failed: %w", err)
		}
	}

	return conn, nil
}
