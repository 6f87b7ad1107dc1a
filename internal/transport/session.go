package transport

import (
	"context"
	"errors"

	ber "github.com/go-asn1-ber/asn1-ber"
	goldap "github.com/go-ldap/ldap/v3"

	"github.com/oba-ldap/winsync/internal/ldap"
	"github.com/oba-ldap/winsync/internal/logging"
	"github.com/oba-ldap/winsync/internal/winconn"
)

// ErrExtendedControls is returned when controls are attached to an
// extended operation; go-ldap does not send them.
var ErrExtendedControls = errors.New("transport: controls on extended operations are not supported")

// ErrGSSAPIUnavailable is returned by GSSAPI binds when no Kerberos client
// is configured.
var ErrGSSAPIUnavailable = errors.New("transport: no GSSAPI client configured")

// Session is one go-ldap connection.
type Session struct {
	conn   *goldap.Conn
	host   string
	gssapi goldap.GSSAPIClient
	log    logging.Logger
}

var _ winconn.Session = (*Session)(nil)

// Bind authenticates with the mechanism named in req.
func (s *Session) Bind(ctx context.Context, req *ldap.BindRequest) (*ldap.BindResponse, error) {
	switch req.Mechanism {
	case "", ldap.MechanismSimple:
		return s.simpleBind(ctx, req)
	case ldap.MechanismExternal:
		return bindResult(call(ctx, func() (struct{}, error) {
			return struct{}{}, s.conn.ExternalBind()
		}, nil))
	case ldap.MechanismDigestMD5:
		return bindResult(call(ctx, func() (struct{}, error) {
			return struct{}{}, s.conn.MD5Bind(s.host, req.Name, req.Password)
		}, nil))
	case ldap.MechanismGSSAPI:
		if s.gssapi == nil {
			return nil, ldap.NewLocalError(ldap.ResultNotSupported, ErrGSSAPIUnavailable)
		}
		return bindResult(call(ctx, func() (struct{}, error) {
			return struct{}{}, s.conn.GSSAPIBind(s.gssapi, "ldap/"+s.host, "")
		}, nil))
	default:
		return nil, ldap.NewLocalError(ldap.ResultAuthUnknown, errors.New("unknown SASL mechanism "+req.Mechanism))
	}
}

func (s *Session) simpleBind(ctx context.Context, req *ldap.BindRequest) (*ldap.BindResponse, error) {
	bindReq := goldap.NewSimpleBindRequest(req.Name, req.Password, toControls(req.Controls))
	bindReq.AllowEmptyPassword = req.IsAnonymous()

	res, err := call(ctx, func() (*goldap.SimpleBindResult, error) {
		return s.conn.SimpleBind(bindReq)
	}, nil)

	result, err := mapError(err)
	if err != nil {
		return nil, err
	}
	resp := &ldap.BindResponse{LDAPResult: result}
	if res != nil {
		resp.Controls = fromControls(res.Controls)
	}
	return resp, nil
}

func bindResult(_ struct{}, err error) (*ldap.BindResponse, error) {
	result, err := mapError(err)
	if err != nil {
		return nil, err
	}
	return &ldap.BindResponse{LDAPResult: result}, nil
}

// Add sends an add request.
func (s *Session) Add(ctx context.Context, req *ldap.AddRequest) (*ldap.Response, error) {
	addReq := goldap.NewAddRequest(req.Entry, toControls(req.Controls))
	for _, a := range req.Attributes {
		addReq.Attribute(a.Type, a.StringValues())
	}
	return s.write(ctx, func() error { return s.conn.Add(addReq) })
}

// Modify sends a modify request.
func (s *Session) Modify(ctx context.Context, req *ldap.ModifyRequest) (*ldap.Response, error) {
	modReq := goldap.NewModifyRequest(req.Object, toControls(req.Controls))
	for _, m := range req.Changes {
		switch m.Operation {
		case ldap.ModifyOperationAdd:
			modReq.Add(m.Attribute.Type, m.Attribute.StringValues())
		case ldap.ModifyOperationDelete:
			modReq.Delete(m.Attribute.Type, m.Attribute.StringValues())
		case ldap.ModifyOperationReplace:
			modReq.Replace(m.Attribute.Type, m.Attribute.StringValues())
		default:
			return nil, ldap.NewLocalError(ldap.ResultParamError, ldap.ErrInvalidModifyOperation)
		}
	}
	return s.write(ctx, func() error { return s.conn.Modify(modReq) })
}

// Delete sends a delete request.
func (s *Session) Delete(ctx context.Context, req *ldap.DeleteRequest) (*ldap.Response, error) {
	delReq := goldap.NewDelRequest(req.DN, toControls(req.Controls))
	return s.write(ctx, func() error { return s.conn.Del(delReq) })
}

// ModifyDN sends a modify DN request.
func (s *Session) ModifyDN(ctx context.Context, req *ldap.ModifyDNRequest) (*ldap.Response, error) {
	mdnReq := goldap.NewModifyDNWithControlsRequest(req.Entry, req.NewRDN, req.DeleteOldRDN, req.NewSuperior, toControls(req.Controls))
	return s.write(ctx, func() error { return s.conn.ModifyDN(mdnReq) })
}

func (s *Session) write(ctx context.Context, fn func() error) (*ldap.Response, error) {
	_, err := call(ctx, func() (struct{}, error) { return struct{}{}, fn() }, nil)
	result, err := mapError(err)
	if err != nil {
		return nil, err
	}
	return &ldap.Response{LDAPResult: result}, nil
}

// Extended sends an extended operation.
func (s *Session) Extended(ctx context.Context, req *ldap.ExtendedRequest) (*ldap.ExtendedResponse, error) {
	if len(req.Controls) > 0 {
		return nil, ldap.NewLocalError(ldap.ResultNotSupported, ErrExtendedControls)
	}

	extReq := extendedRequest(req)
	res, err := call(ctx, func() (*goldap.ExtendedResponse, error) {
		return s.conn.Extended(extReq)
	}, nil)
	result, err := mapError(err)
	if err != nil {
		return nil, err
	}
	resp := &ldap.ExtendedResponse{LDAPResult: result}
	if res != nil && res.Value != nil {
		resp.Value = packetBytes(res.Value)
	}
	return resp, nil
}

// extendedRequest wraps the request value as the [1] octet string of the
// extended request.
func extendedRequest(req *ldap.ExtendedRequest) *goldap.ExtendedRequest {
	var value *ber.Packet
	if req.Value != nil {
		value = ber.NewString(ber.ClassContext, ber.TypePrimitive, ber.Tag(1), string(req.Value), "Extended Request Value")
	}
	return goldap.NewExtendedRequest(req.Name, value)
}

// Search runs a search and collects every entry. Entries received before
// a failure are returned with the failure's result code.
func (s *Session) Search(ctx context.Context, req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	searchReq := goldap.NewSearchRequest(
		req.BaseObject,
		int(req.Scope),
		int(req.DerefAliases),
		req.SizeLimit,
		req.TimeLimit,
		req.TypesOnly,
		req.Filter,
		req.Attributes,
		toControls(req.Controls),
	)

	res, err := call(ctx, func() (*goldap.SearchResult, error) {
		return s.conn.Search(searchReq)
	}, nil)
	result, err := mapError(err)
	if err != nil {
		return nil, err
	}

	out := &ldap.SearchResult{Result: result}
	if res == nil {
		return out, nil
	}
	out.Referrals = res.Referrals
	out.Controls = fromControls(res.Controls)
	out.Entries = make([]*ldap.SearchResultEntry, 0, len(res.Entries))
	for _, e := range res.Entries {
		out.Entries = append(out.Entries, fromEntry(e))
	}
	return out, nil
}

// Close closes the connection.
func (s *Session) Close() error {
	s.conn.Close()
	s.log.Trace("transport closed", "host", s.host)
	return nil
}

func fromEntry(e *goldap.Entry) *ldap.SearchResultEntry {
	out := &ldap.SearchResultEntry{
		ObjectName: e.DN,
		Attributes: make([]ldap.PartialAttribute, 0, len(e.Attributes)),
	}
	for _, a := range e.Attributes {
		out.Attributes = append(out.Attributes, ldap.PartialAttribute{Type: a.Name, Values: a.ByteValues})
	}
	return out
}
