package definition

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dune-sync/internal/domain"
)

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		wantBase   string
		wantID     domain.QueryID
		wantStatus domain.BindingStatus
	}{
		{name: "unbound", file: "daily_users.sql", wantBase: "daily_users", wantStatus: domain.Unbound},
		{name: "bound", file: "metric___123.sql", wantBase: "metric", wantID: 123, wantStatus: domain.Bound},
		{name: "single_underscores_kept", file: "eth_gas_used___5526654.sql", wantBase: "eth_gas_used", wantID: 5526654, wantStatus: domain.Bound},
		{name: "last_separator_wins", file: "a___b___77.sql", wantBase: "a___b", wantID: 77, wantStatus: domain.Bound},
		{name: "non_numeric_suffix", file: "metric___abc.sql", wantBase: "metric", wantStatus: domain.Malformed},
		{name: "zero_id", file: "metric___0.sql", wantBase: "metric", wantStatus: domain.Malformed},
		{name: "empty_suffix", file: "metric___.sql", wantBase: "metric", wantStatus: domain.Malformed},
		{name: "signed_suffix", file: "metric___+5.sql", wantBase: "metric", wantStatus: domain.Malformed},
		{name: "zero_padded_suffix", file: "x___007.sql", wantBase: "x", wantStatus: domain.Malformed},
		{name: "padded_zero", file: "x___00.sql", wantBase: "x", wantStatus: domain.Malformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, id, status := ParseFilename(tt.file)
			assert.Equal(t, tt.wantBase, base)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestFormatFilename_RoundTrip(t *testing.T) {
	for _, base := range []string{"metric", "daily_active_users", "a___b"} {
		for _, id := range []domain.QueryID{1, 123, 5526654} {
			name := FormatFilename(base, id)
			gotBase, gotID, status := ParseFilename(name)
			assert.Equal(t, domain.Bound, status, name)
			assert.Equal(t, base, gotBase, name)
			assert.Equal(t, id, gotID, name)
		}
	}
	assert.Equal(t, "metric___123.sql", FormatFilename("metric", 123))
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{base: "daily_active_users", want: "Daily Active Users"},
		{base: "ETH_volume", want: "Eth Volume"},
		{base: "top-10_holders", want: "Top-10 Holders"},
		{base: "l2beat_tvl", want: "L2Beat Tvl"},
		{base: "foo-bar", want: "Foo-Bar"},
		{base: "nft_mints_24h", want: "Nft Mints 24H"},
		{base: "single", want: "Single"},
		{base: "__leading", want: "  Leading"},
		{base: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.base))
		})
	}
}

func TestIsDefinitionFile(t *testing.T) {
	assert.True(t, IsDefinitionFile("q.sql"))
	assert.False(t, IsDefinitionFile(".sql"))
	assert.False(t, IsDefinitionFile(".hidden.sql"))
	assert.False(t, IsDefinitionFile("readme.md"))
	assert.False(t, IsDefinitionFile("q.sql.bak"))
}
