package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGroupCreateRoundTrip(t *testing.T) {
	env := Envelope{
		Kind: EnvelopeManagedGroup,
		ManagedGroup: &ManagedGroupCommand{
			Kind:   CommandGroupCreate,
			First:  IdentityRef{UserID: "group1", Address: "group1@example.org", KeyFingerprint: "GFPR"},
			Second: IdentityRef{UserID: "manager", Address: "manager@example.org", KeyFingerprint: "MFPR", DisplayName: "Manager"},
		},
	}

	raw, err := Encode(env)
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, CurrentMajor, decoded.Major)
	require.Equal(t, EnvelopeManagedGroup, decoded.Kind)
	require.Equal(t, CommandGroupCreate, decoded.ManagedGroup.Kind)
	require.Equal(t, env.ManagedGroup.First, decoded.ManagedGroup.First)
	require.Equal(t, env.ManagedGroup.Second, decoded.ManagedGroup.Second)
}

func TestKeyResetListRoundTrip(t *testing.T) {
	env := Envelope{
		Kind: EnvelopeKeyReset,
		KeyReset: &KeyResetList{
			Major: 1, Minor: 0,
			Commands: []KeyResetCommand{
				{Identity: IdentityRef{UserID: "me", Address: "me@example.org", KeyFingerprint: "OLD1"}, NewFpr: "NEW1"},
				{Identity: IdentityRef{UserID: "me", Address: "alt@example.org", KeyFingerprint: "OLD2"}, NewFpr: "NEW2"},
			},
		},
	}

	raw, err := Encode(env)
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, EnvelopeKeyReset, decoded.Kind)
	require.Len(t, decoded.KeyReset.Commands, 2)
	require.Equal(t, "NEW1", decoded.KeyReset.Commands[0].NewFpr)
	require.Equal(t, "OLD2", decoded.KeyReset.Commands[1].Identity.KeyFingerprint)
}

func TestEmptyKeyResetList(t *testing.T) {
	env := Envelope{Kind: EnvelopeKeyReset, KeyReset: &KeyResetList{Major: 1, Minor: 0}}
	raw, err := Encode(env)
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	require.Empty(t, decoded.KeyReset.Commands)
}

func TestUnsupportedMajorFailsClosed(t *testing.T) {
	env := Envelope{Kind: EnvelopeKeyReset, KeyReset: &KeyResetList{}}
	raw, err := Encode(env)
	require.NoError(t, err)

	raw[0] = CurrentMajor + 1
	_, err = Decode(raw)
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestUnknownMinorDecodesBestEffort(t *testing.T) {
	env := Envelope{
		Kind: EnvelopeManagedGroup,
		ManagedGroup: &ManagedGroupCommand{
			Kind:  CommandGroupAdopted,
			First: IdentityRef{UserID: "group1", Address: "group1@example.org"},
			Second: IdentityRef{UserID: "alice", Address: "alice@example.org", KeyFingerprint: "AFPR"},
		},
	}
	raw, err := Encode(env)
	require.NoError(t, err)

	raw[1] = CurrentMinor + 1 // simulate a message from a newer minor
	decoded, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, CurrentMinor+1, decoded.Minor)
	require.Equal(t, "alice", decoded.ManagedGroup.Second.UserID)
}

func TestTruncatedInputNeverYieldsPartialResult(t *testing.T) {
	env := Envelope{
		Kind: EnvelopeKeyReset,
		KeyReset: &KeyResetList{
			Commands: []KeyResetCommand{
				{Identity: IdentityRef{UserID: "me", Address: "me@example.org"}, NewFpr: "NEW1"},
			},
		},
	}
	raw, err := Encode(env)
	require.NoError(t, err)

	decoded, err := Decode(raw[:len(raw)-1])
	require.Error(t, err)
	require.Equal(t, Envelope{}, decoded)
}

func TestUnknownEnvelopeKind(t *testing.T) {
	raw := []byte{CurrentMajor, CurrentMinor, 0x7f, 0x00}
	_, err := Decode(raw)
	require.ErrorIs(t, err, ErrUnknownEnvelope)
}
