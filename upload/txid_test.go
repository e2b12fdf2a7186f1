package upload

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const gateway = "https://gateway.irys.xyz"

func TestExtractTxID(t *testing.T) {
	longID := "Xk3kB9fQz7pLmN2vR8sT4wY6aC1dE5gH0jK-_uVbnM"
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{
			name:   "standard line",
			output: "Loaded address: 0xabc\nUploaded to https://gateway.irys.xyz/" + longID + "\n",
			want:   longID,
		},
		{
			name:   "standard line wins over earlier gateway mention",
			output: "Using gateway https://gateway.irys.xyz/info\nUploaded to https://gateway.irys.xyz/abc123",
			want:   "abc123",
		},
		{
			name:   "any line mentioning the gateway",
			output: "Done! Data available at https://gateway.irys.xyz/" + longID + " ",
			want:   longID,
		},
		{
			name:   "long alphanumeric word",
			output: "Funded 0x" + strings.Repeat("a", 40) + "\nreceipt " + longID,
			want:   longID,
		},
		{
			name:   "0x addresses are not ids",
			output: "wallet 0x" + strings.Repeat("b", 40),
			want:   "",
		},
		{
			name:   "short words are not ids",
			output: "upload ok",
			want:   "",
		},
		{
			name:   "empty output",
			output: "",
			want:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTxID(tt.output, gateway))
		})
	}
}

func TestLooksLikeTxID(t *testing.T) {
	assert.True(t, LooksLikeTxID(strings.Repeat("a", 40)))
	assert.True(t, LooksLikeTxID(strings.Repeat("a-_", 14)))
	assert.False(t, LooksLikeTxID(strings.Repeat("a", 39)))
	assert.False(t, LooksLikeTxID(strings.Repeat("-", 40)))
	assert.False(t, LooksLikeTxID(strings.Repeat("a", 39)+"!"))
}
