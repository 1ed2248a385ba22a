package account

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	aliceSS58 = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	aliceHex  = "0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"
	bobSS58   = "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"
	bobHex    = "0x8eaf04151687736326c9fea17e25fc5287613693c912909cb226aa4794f26a48"
)

func TestParseSS58MatchesHex(t *testing.T) {
	for _, tc := range []struct {
		name string
		ss58 string
		hex  string
	}{
		{name: "alice", ss58: aliceSS58, hex: aliceHex},
		{name: "bob", ss58: bobSS58, hex: bobHex},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fromSS58, err := Parse(tc.ss58)
			require.NoError(t, err)
			fromHex, err := Parse(tc.hex)
			require.NoError(t, err)

			require.Equal(t, fromHex, fromSS58)
			require.Equal(t, tc.ss58, fromSS58.String())
			require.Equal(t, tc.hex, fromSS58.Hex())
		})
	}
}

func TestEncodeDecodePrefix(t *testing.T) {
	id := MustParse(aliceHex)

	polkadot := Encode(id, 0)
	decoded, prefix, err := Decode(polkadot)
	require.NoError(t, err)
	require.Equal(t, byte(0), prefix)
	require.Equal(t, id, decoded)
	require.NotEqual(t, aliceSS58, polkadot)
}

func TestParseRejectsMalformed(t *testing.T) {
	// Flip the last character so the checksum no longer matches.
	tampered := aliceSS58[:len(aliceSS58)-1] + "Z"

	for _, in := range []string{"", "0x1234", "not-an-address", tampered, "0x" + aliceHex[2:] + "00"} {
		_, err := Parse(in)
		require.Error(t, err, in)
		require.True(t, errors.Is(err, ErrInvalidAddress), in)
	}
}

func TestTextRoundTrip(t *testing.T) {
	type wrapper struct {
		Store ID `json:"store"`
	}
	in := wrapper{Store: MustParse(bobSS58)}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	require.JSONEq(t, `{"store":"`+bobSS58+`"}`, string(raw))

	var out wrapper
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Equal(t, in, out)
}

func TestIDUsableAsMapKey(t *testing.T) {
	alice := MustParse(aliceSS58)
	again := MustParse(aliceHex)

	seen := map[ID]int{alice: 1}
	seen[again]++
	require.Len(t, seen, 1)
	require.Equal(t, 2, seen[alice])
	require.False(t, alice.IsZero())
	require.True(t, ID{}.IsZero())
}
