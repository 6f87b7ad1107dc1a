package winconn

import (
	"context"

	"github.com/oba-ldap/winsync/internal/ldap"
)

// ds5Extensions must all be advertised for DS5 replication support.
var ds5Extensions = []string{
	ldap.OIDStartReplicationRequest,
	ldap.OIDEndReplicationRequest,
	ldap.OIDReplicationEntryRequest,
	ldap.OIDReplicationResponse,
}

type probe struct {
	name  string
	attrs []string
	cache func(c *Connection) *Capability
	test  func(rootDSE *ldap.SearchResultEntry) bool
}

var (
	probeDS5 = probe{
		name:  "ds5",
		attrs: []string{ldap.AttrSupportedControl, ldap.AttrSupportedExtension},
		cache: func(c *Connection) *Capability { return &c.supportsDS5 },
		test: func(e *ldap.SearchResultEntry) bool {
			if !e.HasAttributeValue(ldap.AttrSupportedControl, ldap.OIDReplUpdateInfoControl) {
				return false
			}
			for _, oid := range ds5Extensions {
				if !e.HasAttributeValue(ldap.AttrSupportedExtension, oid) {
					return false
				}
			}
			return true
		},
	}

	probeDirSync = probe{
		name:  "dirsync",
		attrs: []string{ldap.AttrSupportedControl},
		cache: func(c *Connection) *Capability { return &c.supportsDirSync },
		test: func(e *ldap.SearchResultEntry) bool {
			return e.HasAttributeValue(ldap.AttrSupportedControl, ldap.OIDDirSync)
		},
	}

	probeWin2k3 = probe{
		name:  "win2k3",
		attrs: []string{ldap.AttrSupportedCapabilities},
		cache: func(c *Connection) *Capability { return &c.isWin2k3 },
		test: func(e *ldap.SearchResultEntry) bool {
			return e.HasAttributeValue(ldap.AttrSupportedCapabilities, ldap.OIDWin2k3Capability)
		},
	}
)

// SupportsDS5 reports whether the peer supports DS5 replication. The
// answer is cached until the connection closes.
func (c *Connection) SupportsDS5(ctx context.Context) (Capability, error) {
	return c.probe(ctx, probeDS5)
}

// SupportsDirSync reports whether the peer supports incremental search.
// Setting WINSYNC_USE_DS forces support without asking the peer.
func (c *Connection) SupportsDirSync(ctx context.Context) (Capability, error) {
	if _, ok := c.opts.LookupEnv(UseDirSyncEnv); ok {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.goneLocked() {
			return CapabilityUnknown, ErrDeleted
		}
		c.supportsDirSync = CapabilitySupported
		return CapabilitySupported, nil
	}
	return c.probe(ctx, probeDirSync)
}

// IsWin2k3 reports whether the peer is Windows Server 2003 or later.
func (c *Connection) IsWin2k3(ctx context.Context) (Capability, error) {
	return c.probe(ctx, probeWin2k3)
}

// probe returns the cached answer or reads the root DSE once. Answers are
// not cached when the read fails.
func (c *Connection) probe(ctx context.Context, p probe) (Capability, error) {
	c.mu.Lock()
	if err := c.checkLocked(OpSearch); err != nil {
		c.mu.Unlock()
		return CapabilityUnknown, err
	}
	if cached := *p.cache(c); cached != CapabilityUnknown {
		c.mu.Unlock()
		return cached, nil
	}
	sess := c.session
	c.mu.Unlock()

	res, err := c.search(ctx, &ldap.SearchRequest{
		BaseObject: "",
		Scope:      ldap.ScopeBaseObject,
		Filter:     ldap.FilterAnyObject,
		Attributes: p.attrs,
	})
	if err != nil {
		c.log.Debug("capability probe failed", "capability", p.name, "error", err)
		return CapabilityUnknown, err
	}

	answer := CapabilityUnsupported
	if len(res.Entries) > 0 && p.test(res.Entries[0]) {
		answer = CapabilitySupported
	}

	c.mu.Lock()
	if c.session == sess {
		*p.cache(c) = answer
	}
	c.mu.Unlock()

	c.log.Debug("capability probed", "capability", p.name, "answer", answer.String())
	return answer, nil
}
