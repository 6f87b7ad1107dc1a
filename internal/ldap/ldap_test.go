package ldap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultCodeString(t *testing.T) {
	tests := []struct {
		code     ResultCode
		expected string
	}{
		{ResultSuccess, "success"},
		{ResultNoSuchObject, "noSuchObject"},
		{ResultUnwillingToPerform, "unwillingToPerform"},
		{ResultEntryAlreadyExists, "entryAlreadyExists"},
		{ResultServerDown, "serverDown"},
		{ResultConnectError, "connectError"},
		{ResultCode(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.code.String())
		})
	}
}

func TestResultCodeIsClientSide(t *testing.T) {
	assert.True(t, ResultServerDown.IsClientSide())
	assert.True(t, ResultLocalError.IsClientSide())
	assert.True(t, ResultConnectError.IsClientSide())
	assert.False(t, ResultInvalidCredentials.IsClientSide())
	assert.False(t, ResultOther.IsClientSide())
}

func TestLocalError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewLocalError(ResultServerDown, cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "serverDown")

	code, ok := LocalErrorCode(err)
	require.True(t, ok)
	assert.Equal(t, ResultServerDown, code)

	_, ok = LocalErrorCode(cause)
	assert.False(t, ok)
}

func TestNormalizeDiagnostic(t *testing.T) {
	msg := "0000052D: Constraint violation\r\n\tpassword too short\n"
	assert.Equal(t, "0000052D: Constraint violation  \tpassword too short ", NormalizeDiagnostic(msg))
}

func TestFindControl(t *testing.T) {
	controls := []Control{
		{OID: OIDManageDsaIT},
		{OID: OIDDirSync, Value: []byte{1}},
	}

	c := FindControl(controls, OIDDirSync)
	require.NotNil(t, c)
	assert.Equal(t, []byte{1}, c.Value)
	assert.Nil(t, FindControl(controls, OIDPasswordExpired))
}

func TestAddRequestValidate(t *testing.T) {
	req := &AddRequest{Entry: "cn=alice,dc=example,dc=com"}
	req.AddStringAttribute("objectClass", "top", "person")
	require.NoError(t, req.Validate())

	attr := req.GetAttribute("OBJECTCLASS")
	require.NotNil(t, attr)
	assert.Equal(t, []string{"top", "person"}, attr.StringValues())

	req.AddAttribute("description")
	assert.ErrorIs(t, req.Validate(), ErrEmptyAttributeValues)

	assert.ErrorIs(t, (&AddRequest{}).Validate(), ErrEmptyEntry)
}

func TestModifyRequestValidate(t *testing.T) {
	req := &ModifyRequest{Object: "cn=alice,dc=example,dc=com"}
	assert.ErrorIs(t, req.Validate(), ErrEmptyModifications)

	req.AddStringModification(ModifyOperationReplace, "description", "synced")
	require.NoError(t, req.Validate())
	assert.Equal(t, "Replace", req.Changes[0].Operation.String())

	req.Changes = append(req.Changes, Modification{Operation: ModifyOperation(7), Attribute: Attribute{Type: "cn"}})
	assert.ErrorIs(t, req.Validate(), ErrInvalidModifyOperation)
}

func TestModifyDNRequestValidate(t *testing.T) {
	req := &ModifyDNRequest{Entry: "cn=alice,dc=example,dc=com"}
	assert.ErrorIs(t, req.Validate(), ErrEmptyNewRDN)

	req.NewRDN = "cn=alicia"
	require.NoError(t, req.Validate())
	assert.False(t, req.HasNewSuperior())

	req.NewSuperior = "ou=people,dc=example,dc=com"
	assert.True(t, req.HasNewSuperior())
}

func TestBindRequestAuthMethod(t *testing.T) {
	assert.Equal(t, AuthMethodSimple, (&BindRequest{}).AuthMethod())
	assert.True(t, (&BindRequest{}).IsAnonymous())
	assert.Equal(t, AuthMethodSASL, (&BindRequest{Mechanism: MechanismExternal}).AuthMethod())
	assert.False(t, (&BindRequest{Name: "cn=admin", Password: "secret"}).IsAnonymous())
}

func TestSearchResultEntryValues(t *testing.T) {
	e := &SearchResultEntry{
		ObjectName: "",
		Attributes: []PartialAttribute{
			{Type: "supportedControl", Values: StringsToValues(OIDDirSync, OIDManageDsaIT)},
			{Type: "supportedCapabilities", Values: nil},
		},
	}

	assert.True(t, e.HasAttributeValue("SupportedControl", OIDDirSync))
	assert.False(t, e.HasAttributeValue("supportedControl", OIDWin2k3Capability))
	assert.False(t, e.HasAttributeValue("supportedCapabilities", OIDWin2k3Capability))
	assert.Len(t, e.GetAttributeValues("supportedcontrol"), 2)
	assert.Nil(t, e.GetAttributeValues("namingContexts"))
}
