package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"proofofawesome/engine/actors"
	"proofofawesome/state/ledger"
)

const pubKey = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"

func TestEncodeFramesMessage(t *testing.T) {
	data, err := Encode(SignIn{Name: "alice", PublicKey: pubKey})
	require.NoError(t, err)
	assert.Equal(t, "sign in", gjson.GetBytes(data, "kind").String())
	assert.Equal(t, pubKey, gjson.GetBytes(data, "payload.publicKey").String())
	assert.Len(t, gjson.GetBytes(data, "id").String(), 36)

	other, err := Encode(SignIn{Name: "alice", PublicKey: pubKey})
	require.NoError(t, err)
	assert.NotEqual(t, gjson.GetBytes(data, "id").String(), gjson.GetBytes(other, "id").String())
}

func TestEncodeRejectsInvalidPayload(t *testing.T) {
	_, err := Encode(Register{Name: "bob", PublicKey: "nope"})
	assert.ErrorIs(t, err, ErrInvalidPayload)
	_, err = Encode(GetBlocks{ChainUUID: "c", FromHeight: 5, ToHeight: 2})
	assert.ErrorIs(t, err, ErrInvalidPayload)
	_, err = Encode(JoinChain{})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestDecodeDispatchesOnKind(t *testing.T) {
	b := ledger.Block{ChainUUID: "c", Height: 3, PreviousHash: "p", Transactions: []string{}, Achievement: "a", Timestamp: 7}
	b.Hash = b.ComputeHash()

	for _, m := range []Message{
		SignIn{Name: "alice", PublicKey: pubKey},
		GetPublicChains{},
		GetBlocks{ChainUUID: "c", FromHeight: 0, ToHeight: 3},
		BlockCreated(b),
		Blocks{b},
		ChainHead{ChainUUID: "c", LatestBlockHash: "h", LatestBlockHeight: 2},
		MembershipUpdate{ChainUUID: "c", Tokens: 4},
		SignInError("no such user"),
		RegisterSuccess{},
	} {
		data, err := Encode(m)
		require.NoError(t, err, m.Kind())
		got, err := Decode(data)
		require.NoError(t, err, m.Kind())
		assert.Equal(t, m, got)
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		err   error
	}{
		{"not json", `{"kind":`, ErrInvalidPayload},
		{"no kind", `{"payload":{}}`, ErrInvalidPayload},
		{"numeric kind", `{"kind":3}`, ErrInvalidPayload},
		{"unknown kind", `{"kind":"launch rocket","payload":{}}`, ErrUnknownKind},
		{"wrong payload shape", `{"kind":"chain head","payload":"head"}`, ErrInvalidPayload},
		{"missing chain", `{"kind":"chain stats","payload":{"price":2}}`, ErrInvalidPayload},
		{"block without hash", `{"kind":"new block created","payload":{"chainUuid":"c","height":1}}`, ErrInvalidPayload},
		{"membership without chain", `{"kind":"memberships","payload":[{"tokens":1}]}`, ErrInvalidPayload},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Decode([]byte(test.frame))
			assert.ErrorIs(t, err, test.err)
		})
	}
}

func TestDecodeLegacyVerificationResult(t *testing.T) {
	m, err := Decode([]byte(`{"id":"x","kind":"achievement verification result","payload":{"achievementSignature":"sig","reward":3,"message":"nice run"}}`))
	require.NoError(t, err)
	result, ok := m.(VerificationResult)
	require.True(t, ok)
	assert.Equal(t, ledger.Review{AchievementSignature: "sig", Comment: "nice run", Reward: 3}, result.Review())
}

func TestKindDirections(t *testing.T) {
	assert.True(t, KindNewBlock.Outbound())
	assert.False(t, KindNewBlock.Inbound())
	assert.True(t, KindBlockCreated.Inbound())
	assert.False(t, KindBlockCreated.Outbound())
	assert.False(t, Kind("launch rocket").Inbound())
	for kind := range decoders {
		assert.True(t, kind.Inbound() != kind.Outbound(), kind)
	}
}

func signedAchievement(t *testing.T, description string) ledger.Achievement {
	t.Helper()
	w, err := actors.CreateWallet("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about", "")
	require.NoError(t, err)
	address, err := w.DeriveAddress("running")
	require.NoError(t, err)
	a := ledger.Achievement{
		ChainUUID:     "running",
		UserPublicKey: w.Account(),
		UserAddress:   address,
		Description:   description,
		Timestamp:     1700000000000,
	}
	a.Signature, err = w.SignAchievement(a)
	require.NoError(t, err)
	return a
}

func TestDecodePushedAchievements(t *testing.T) {
	first := signedAchievement(t, "ran 5km")
	second := signedAchievement(t, "ran 10km")

	data, err := Encode(Achievements{first, second})
	require.NoError(t, err)
	m, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, Achievements{first, second}, m)

	data, err = Encode(Achievement(first))
	require.NoError(t, err)
	m, err = Decode(data)
	require.NoError(t, err)
	assert.Equal(t, Achievement(first), m)
	assert.True(t, KindAchievement.Inbound())
	assert.True(t, KindAchievements.Inbound())
}

func TestDecodeRejectsUnverifiedAchievements(t *testing.T) {
	forged := signedAchievement(t, "ran 5km")
	forged.Description = "ran 50km"
	body, err := json.Marshal(forged)
	require.NoError(t, err)

	_, err = Decode([]byte(`{"id":"x","kind":"achievement","payload":` + string(body) + `}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
	_, err = Decode([]byte(`{"id":"x","kind":"achievements","payload":[` + string(body) + `]}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
	_, err = Decode([]byte(`{"id":"x","kind":"achievement","payload":{"chainUuid":"running","description":"ran 5km"}}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}
