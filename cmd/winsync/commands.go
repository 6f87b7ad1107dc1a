package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oba-ldap/winsync/internal/crypto"
	"github.com/oba-ldap/winsync/internal/entry"
	"github.com/oba-ldap/winsync/internal/ldap"
	"github.com/oba-ldap/winsync/internal/winconn"
)

// probe connects and reports what the peer supports.
func (c *command) probe() int {
	ctx, cancel := signalContext()
	defer cancel()

	s, code := c.connect(ctx)
	if s == nil {
		return code
	}
	defer s.close()

	ds5, err := s.conn.SupportsDS5(ctx)
	if err != nil {
		return c.fail("probe replication extensions: %v", err)
	}
	dirsync, err := s.conn.SupportsDirSync(ctx)
	if err != nil {
		return c.fail("probe dirsync: %v", err)
	}
	win2k3, err := s.conn.IsWin2k3(ctx)
	if err != nil {
		return c.fail("probe capabilities: %v", err)
	}

	fmt.Fprintf(c.stdout, "%s\n", s.agreement.LongName())
	fmt.Fprintf(c.stdout, "  Connection:   %s\n", s.conn.ID())
	fmt.Fprintf(c.stdout, "  State:        %s\n", s.conn.State())
	fmt.Fprintf(c.stdout, "  DS5:          %s\n", ds5)
	fmt.Fprintf(c.stdout, "  DirSync:      %s\n", dirsync)
	fmt.Fprintf(c.stdout, "  Windows 2003: %s\n", win2k3)
	fmt.Fprintf(c.stdout, "  NT4 peer:     %v\n", s.agreement.IsNT4())
	return 0
}

func parseScope(s string) (ldap.SearchScope, bool) {
	switch strings.ToLower(s) {
	case "", "base":
		return ldap.ScopeBaseObject, true
	case "one":
		return ldap.ScopeSingleLevel, true
	case "sub":
		return ldap.ScopeWholeSubtree, true
	}
	return 0, false
}

// search reads one entry, following ranged attributes to the end.
func (c *command) search() int {
	scope, ok := parseScope(c.str("--scope"))
	if !ok {
		return c.fail("unknown scope %q", c.str("--scope"))
	}
	filter := c.str("<filter>")
	if filter == "" {
		filter = ldap.FilterAnyObject
	}

	ctx, cancel := signalContext()
	defer cancel()

	s, code := c.connect(ctx)
	if s == nil {
		return code
	}
	defer s.close()

	es := s.conn.NewEntrySearch(c.str("<base>"), filter, scope, nil)
	es.SetAttrsOnly(c.flag("--attrs-only"))
	for es.Next(ctx) {
	}
	if err := es.Err(); err != nil {
		return c.fail("search: %v", err)
	}
	if es.Entry() == nil {
		fmt.Fprintln(c.stderr, "no entry matched")
		return 1
	}

	writeEntry(c.stdout, es.Entry())
	fmt.Fprintf(c.stdout, "# rounds: %d\n", es.Rounds())
	return 0
}

// readAttribute prints the values of one attribute.
func (c *command) readAttribute() int {
	ctx, cancel := signalContext()
	defer cancel()

	s, code := c.connect(ctx)
	if s == nil {
		return code
	}
	defer s.close()

	attr := c.str("<attribute>")
	values, err := s.conn.ReadEntryAttribute(ctx, c.str("<dn>"), attr)
	if err != nil {
		return c.fail("read %s: %v", attr, err)
	}
	for _, v := range values {
		writeValue(c.stdout, attr, v)
	}
	return 0
}

// dirsync reads the changes since the configured cookie. With --follow it
// keeps polling, lingering on the connection between rounds.
func (c *command) dirsync() int {
	interval, err := time.ParseDuration(c.str("--interval"))
	if err != nil || interval <= 0 {
		return c.fail("invalid interval %q", c.str("--interval"))
	}
	follow := c.flag("--follow")

	ctx, cancel := signalContext()
	defer cancel()

	s, code := c.connect(ctx)
	if s == nil {
		return code
	}
	defer s.close()

	if follow {
		stop, err := s.watch()
		if err != nil {
			s.log.Warn("failed to create config watcher", "error", err)
		} else {
			defer stop()
		}
	}

	for {
		if err := c.dirsyncRounds(ctx, s); err != nil {
			return c.fail("dirsync: %v", err)
		}
		fmt.Fprintf(c.stdout, "# cookie: %s\n", s.agreement.EncodedCookie())
		if !follow {
			return 0
		}

		s.conn.StartLinger()
		select {
		case <-ctx.Done():
			return 0
		case <-time.After(interval):
		}
		s.conn.CancelLinger()
		if !s.conn.IsConnected() {
			if err := s.conn.Connect(ctx); err != nil {
				return c.fail("reconnect: %s (%v)", winconn.OutcomeOf(err), err)
			}
		}
	}
}

// dirsyncRounds searches until the peer reports no further changes.
func (c *command) dirsyncRounds(ctx context.Context, s *session) error {
	if _, err := s.conn.SupportsDirSync(ctx); err != nil {
		return err
	}
	for {
		res, err := s.conn.DirSync(ctx)
		if err != nil {
			return err
		}
		for _, r := range res.Entries {
			writeEntry(c.stdout, r.Entry)
		}
		if !res.HasMore {
			return nil
		}
	}
}

// checkPassword binds as dn with the given password.
func (c *command) checkPassword() int {
	password, err := readPassword(c.str("--password-file"), c.stdin)
	if err != nil {
		return c.fail("read password: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	s, err := c.openSession()
	if err != nil {
		return c.fail("%v", err)
	}
	defer s.close()

	dn := c.str("<dn>")
	if err := s.conn.CheckUserPassword(ctx, dn, password); err != nil {
		fmt.Fprintf(c.stdout, "%s: password rejected: %s (%v)\n", dn, winconn.OutcomeOf(err), err)
		return 1
	}
	fmt.Fprintf(c.stdout, "%s: password accepted\n", dn)
	return 0
}

// encryptCredential prints a bind credential in the form the
// configuration accepts.
func (c *command) encryptCredential() int {
	secret, err := crypto.LoadSecretFile(c.str("--secret-file"))
	if err != nil {
		return c.fail("load secret: %v", err)
	}
	codec, err := crypto.NewCodecFromSecret(secret)
	if err != nil {
		return c.fail("credential key: %v", err)
	}
	password, err := readPassword(c.str("--password-file"), c.stdin)
	if err != nil {
		return c.fail("read password: %v", err)
	}
	encoded, err := codec.Encode(password)
	if err != nil {
		return c.fail("encrypt: %v", err)
	}
	fmt.Fprintln(c.stdout, encoded)
	return 0
}

// writeEntry prints an entry in LDIF form.
func writeEntry(w io.Writer, e *entry.Entry) {
	fmt.Fprintf(w, "dn: %s\n", e.DN)
	for _, a := range e.Attributes() {
		if len(a.Values) == 0 {
			fmt.Fprintf(w, "%s:\n", a.Name)
			continue
		}
		for _, v := range a.Values {
			writeValue(w, a.Name, v)
		}
	}
	for _, name := range e.DeletedAttributes() {
		fmt.Fprintf(w, "# deleted: %s\n", name)
	}
	fmt.Fprintln(w)
}

// writeValue prints one attribute value, base64 encoded when it is not
// printable text.
func writeValue(w io.Writer, name string, v []byte) {
	if printable(v) {
		fmt.Fprintf(w, "%s: %s\n", name, v)
		return
	}
	fmt.Fprintf(w, "%s:: %s\n", name, base64.StdEncoding.EncodeToString(v))
}

func printable(v []byte) bool {
	if !utf8.Valid(v) {
		return false
	}
	if len(v) > 0 && (v[0] == ' ' || v[0] == ':' || v[0] == '<') {
		return false
	}
	for _, b := range v {
		if b < 0x20 || b == 0x7f {
			return false
		}
	}
	return true
}
