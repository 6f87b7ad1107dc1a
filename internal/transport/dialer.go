// Package transport connects to Active Directory peers with go-ldap and
// adapts the connections to the winconn Session interface.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	goldap "github.com/go-ldap/ldap/v3"

	"github.com/oba-ldap/winsync/internal/ldap"
	"github.com/oba-ldap/winsync/internal/logging"
	"github.com/oba-ldap/winsync/internal/winconn"
)

// ErrTLSRequired is returned when a secure transport is dialed without a
// TLS configuration.
var ErrTLSRequired = errors.New("transport: TLS configuration required")

// Dialer opens go-ldap connections.
type Dialer struct {
	// GSSAPIClient performs the Kerberos exchange of GSSAPI binds. Without
	// one, GSSAPI binds fail with notSupported.
	GSSAPIClient goldap.GSSAPIClient
	// Logger receives transport events. Nil discards them.
	Logger logging.Logger
}

var _ winconn.Dialer = (*Dialer)(nil)

// NewDialer creates a Dialer logging to log.
func NewDialer(log logging.Logger) *Dialer {
	return &Dialer{Logger: log}
}

func (d *Dialer) logger() logging.Logger {
	if d.Logger == nil {
		return logging.NewNop()
	}
	return d.Logger
}

// URL returns the LDAP URL for a peer.
func URL(host string, port int, t winconn.Transport) string {
	scheme := "ldap"
	if t == winconn.TransportLDAPS {
		scheme = "ldaps"
	}
	return scheme + "://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// Dial connects to the peer, upgrading with StartTLS when asked. Referrals
// are never followed and every request speaks protocol version 3.
func (d *Dialer) Dial(ctx context.Context, opts winconn.DialOptions) (winconn.Session, error) {
	if opts.Transport.Secure() && opts.TLS == nil {
		return nil, ldap.NewLocalError(ldap.ResultParamError, ErrTLSRequired)
	}

	url := URL(opts.Host, opts.Port, opts.Transport)
	dialOpts := []goldap.DialOpt{
		goldap.DialWithDialer(&net.Dialer{Timeout: opts.Timeout}),
	}
	if opts.Transport == winconn.TransportLDAPS {
		dialOpts = append(dialOpts, goldap.DialWithTLSConfig(opts.TLS))
	}

	dial := func() (*goldap.Conn, error) {
		c, err := goldap.DialURL(url, dialOpts...)
		if err != nil {
			return nil, err
		}
		if opts.Transport == winconn.TransportStartTLS {
			if err := c.StartTLS(opts.TLS); err != nil {
				c.Close()
				return nil, fmt.Errorf("starttls: %w", err)
			}
		}
		return c, nil
	}

	conn, err := call(ctx, dial, func(c *goldap.Conn) { c.Close() })
	if err != nil {
		return nil, dialError(err)
	}

	if opts.Timeout > 0 {
		conn.SetTimeout(opts.Timeout)
	}
	d.logger().Debug("transport opened", "url", url)
	return &Session{conn: conn, host: opts.Host, gssapi: d.GSSAPIClient, log: d.logger()}, nil
}

// dialError maps a dial failure to a connect error, keeping timeouts and
// cancellation recognizable.
func dialError(err error) error {
	if isContextError(err) {
		return err
	}
	var le *ldap.LocalError
	if errors.As(err, &le) {
		return err
	}
	return ldap.NewLocalError(ldap.ResultConnectError, err)
}

// call runs fn and waits for it or for ctx. When ctx ends first fn keeps
// running in the background; its result is handed to discard, if set.
func call[T any](ctx context.Context, fn func() (T, error), discard func(T)) (T, error) {
	if ctx.Done() == nil {
		return fn()
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		if discard != nil {
			go func() {
				if r := <-done; r.err == nil {
					discard(r.v)
				}
			}()
		}
		var zero T
		return zero, ctx.Err()
	}
}
