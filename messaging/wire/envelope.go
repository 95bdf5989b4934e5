package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

var (
	ErrUnknownKind    = errors.New("unknown message kind")
	ErrInvalidPayload = errors.New("invalid message payload")
)

// Envelope is the frame every message travels in.
type Envelope struct {
	ID      string          `json:"id"`
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Encode frames m in a new Envelope.
func Encode(m Message) ([]byte, error) {
	if v, ok := m.(validator); ok {
		if err := v.validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %s", ErrInvalidPayload, m.Kind(), err.Error())
		}
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		ID:      uuid.NewString(),
		Kind:    m.Kind(),
		Payload: payload,
	})
}

var decoders = map[Kind]func(raw []byte) (Message, error){
	KindRegister:           decodeAs[Register],
	KindSignIn:             decodeAs[SignIn],
	KindGetPublicChains:    decodeAs[GetPublicChains],
	KindJoinChain:          decodeAs[JoinChain],
	KindGetBlocks:          decodeAs[GetBlocks],
	KindNewAchievement:     decodeAs[NewAchievement],
	KindNewBlock:           decodeAs[NewBlock],
	KindIdentityProof:      decodeAs[IdentityProof],
	KindRegisterSuccess:    decodeAs[RegisterSuccess],
	KindSignInSuccess:      decodeAs[SignInSuccess],
	KindSignInError:        decodeAs[SignInError],
	KindPublicChains:       decodeAs[PublicChains],
	KindJoinChainSuccess:   decodeAs[JoinChainSuccess],
	KindChainInfo:          decodeAs[ChainInfo],
	KindChainHead:          decodeAs[ChainHead],
	KindChainStats:         decodeAs[ChainStats],
	KindChainBrief:         decodeAs[ChainBrief],
	KindMembershipUpdate:   decodeAs[MembershipUpdate],
	KindMemberships:        decodeAs[Memberships],
	KindAchievement:        decodeAs[Achievement],
	KindAchievements:       decodeAs[Achievements],
	KindVerificationResult: decodeAs[VerificationResult],
	KindAchievementReviews: decodeAs[AchievementReviews],
	KindBlockCreated:       decodeAs[BlockCreated],
	KindBlocks:             decodeAs[Blocks],
	KindError:              decodeAs[ServerError],
}

// Decode reads an Envelope and returns its strongly typed, validated payload.
func Decode(data []byte) (Message, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: frame is not json", ErrInvalidPayload)
	}
	kind := gjson.GetBytes(data, "kind")
	if !kind.Exists() || kind.Type != gjson.String {
		return nil, fmt.Errorf("%w: frame has no kind", ErrInvalidPayload)
	}
	decode, ok := decoders[Kind(kind.String())]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind.String())
	}
	raw := []byte("null")
	if payload := gjson.GetBytes(data, "payload"); payload.Exists() {
		raw = []byte(payload.Raw)
	}
	m, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrInvalidPayload, kind.String(), err.Error())
	}
	if v, ok := m.(validator); ok {
		if err := v.validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %s", ErrInvalidPayload, kind.String(), err.Error())
		}
	}
	return m, nil
}

func decodeAs[T Message](raw []byte) (Message, error) {
	var m T
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
