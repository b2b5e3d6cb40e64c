package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlags_SetClearHas(t *testing.T) {
	var f Flags
	f = f.Set(FlagQR | FlagRD)
	assert.True(t, f.Has(FlagQR))
	assert.True(t, f.Has(FlagRD))
	assert.True(t, f.Has(FlagQR|FlagRD))
	assert.False(t, f.Has(FlagQR|FlagAA))

	f = f.Clear(FlagQR)
	assert.False(t, f.Has(FlagQR))
	assert.True(t, f.Has(FlagRD))
}

func TestFlags_OpcodeAndRCode(t *testing.T) {
	// opcode 2 (STATUS), RD, rcode 3
	f := Flags(0x1103)
	assert.Equal(t, uint8(2), f.Opcode())
	assert.Equal(t, RCodeNXDomain, f.RCode())

	f = f.WithRCode(RCodeRefused)
	assert.Equal(t, RCodeRefused, f.RCode())
	assert.Equal(t, uint8(2), f.Opcode())
	assert.True(t, f.Has(FlagRD))

	// only the low nibble is kept
	assert.Equal(t, RCode(0x1), Flags(0).WithRCode(0x11).RCode())
}

func TestHeader_ErrorReply(t *testing.T) {
	h := Header{
		ID:      0xBEEF,
		Flags:   FlagRD,
		QDCount: 1,
		ANCount: 3,
		NSCount: 2,
		ARCount: 1,
	}

	out := h.ErrorReply(RCodeFormErr)

	assert.Equal(t, uint16(0xBEEF), out.ID)
	assert.True(t, out.IsResponse())
	assert.True(t, out.Flags.Has(FlagAA|FlagRA|FlagRD))
	assert.Equal(t, RCodeFormErr, out.Flags.RCode())
	assert.Equal(t, uint16(1), out.QDCount)
	assert.Zero(t, out.ANCount)
	assert.Zero(t, out.NSCount)
	assert.Equal(t, uint16(1), out.ARCount)

	// original untouched
	assert.False(t, h.IsResponse())
	assert.Equal(t, uint16(3), h.ANCount)
}

func TestQuestion_IsSupported(t *testing.T) {
	cases := []struct {
		q    Question
		want bool
	}{
		{Question{Name: "example.com", Type: RRTypeA, Class: RRClassIN}, true},
		{Question{Name: "example.com", Type: RRTypeMX, Class: RRClassIN}, false},
		{Question{Name: "example.com", Type: RRTypeA, Class: RRClassCH}, false},
		{Question{Name: "example.com", Type: RRTypeAAAA, Class: RRClassANY}, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.q.IsSupported(), "%s/%s", tc.q.Type, tc.q.Class)
	}
}
