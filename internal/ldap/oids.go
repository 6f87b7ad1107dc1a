package ldap

// Controls and extensions a replication peer may advertise in its root DSE.
const (
	// OIDManageDsaIT is the ManageDsaIT control (RFC 3296).
	OIDManageDsaIT = "2.16.840.1.113730.3.4.2"

	// OIDPasswordExpired is returned on bind when the password has expired.
	OIDPasswordExpired = "2.16.840.1.113730.3.4.4"
	// OIDPasswordExpiring is returned on bind with the seconds left before
	// the password expires.
	OIDPasswordExpiring = "2.16.840.1.113730.3.4.5"

	// OIDReplUpdateInfoControl is the DS5 replication update-info control.
	OIDReplUpdateInfoControl = "2.16.840.1.113730.3.4.13"
	// OIDStartReplicationRequest starts a DS5 replication session.
	OIDStartReplicationRequest = "2.16.840.1.113730.3.5.3"
	// OIDReplicationResponse is the DS5 replication response extension.
	OIDReplicationResponse = "2.16.840.1.113730.3.5.4"
	// OIDEndReplicationRequest ends a DS5 replication session.
	OIDEndReplicationRequest = "2.16.840.1.113730.3.5.5"
	// OIDReplicationEntryRequest carries an entry in a total update.
	OIDReplicationEntryRequest = "2.16.840.1.113730.3.5.6"

	// OIDDirSync is the Active Directory incremental-change search control.
	OIDDirSync = "1.2.840.113556.1.4.841"
	// OIDWin2k3Capability is advertised by Windows Server 2003 and later.
	OIDWin2k3Capability = "1.2.840.113556.1.4.1670"
)

// Root DSE attributes that advertise peer capabilities.
const (
	AttrSupportedControl      = "supportedControl"
	AttrSupportedExtension    = "supportedExtension"
	AttrSupportedCapabilities = "supportedCapabilities"
)
