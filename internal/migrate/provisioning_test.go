package migrate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/wolfeidau/orgflow/internal/store"
)

func TestProvisioningSpec(t *testing.T) {
	req := &store.AccountRequest{
		RequestID:   "migrate-2026-03-14-abcd1234",
		Template:    "client",
		Email:       "aws+acme-prod@example.com",
		Name:        "acme-prod",
		ClientID:    "acme",
		RequestedBy: "jane.doe@example.com",
		TargetOU:    "Sandbox",
		Customizations: map[string]string{
			"migration_source":    "existing_account",
			"original_account_id": "111111111111",
			"migration_type":      "ou_change",
		},
		Status:    store.StatusPending,
		AccountID: "111111111111",
		CreatedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}

	data, err := ProvisioningSpec(req)
	require.NoError(t, err)

	var doc struct {
		ControlTowerParameters struct {
			AccountEmail              string `yaml:"AccountEmail"`
			AccountName               string `yaml:"AccountName"`
			ManagedOrganizationalUnit string `yaml:"ManagedOrganizationalUnit"`
			SSOUserEmail              string `yaml:"SSOUserEmail"`
			SSOUserFirstName          string `yaml:"SSOUserFirstName"`
			SSOUserLastName           string `yaml:"SSOUserLastName"`
		} `yaml:"control_tower_parameters"`
		AccountTags               map[string]string `yaml:"account_tags"`
		AccountCustomizationsName string            `yaml:"account_customizations_name"`
		CustomFields              map[string]string `yaml:"custom_fields"`
	}
	require.NoError(t, yaml.Unmarshal(data, &doc))

	require.Equal(t, "aws+acme-prod@example.com", doc.ControlTowerParameters.AccountEmail)
	require.Equal(t, "acme-prod", doc.ControlTowerParameters.AccountName)
	require.Equal(t, "Sandbox", doc.ControlTowerParameters.ManagedOrganizationalUnit)
	require.Equal(t, "Jane", doc.ControlTowerParameters.SSOUserFirstName)
	require.Equal(t, "Doe", doc.ControlTowerParameters.SSOUserLastName)

	require.Equal(t, map[string]string{
		"client_id":  "acme",
		"request_id": "migrate-2026-03-14-abcd1234",
	}, doc.AccountTags)
	require.Equal(t, "migration-customization", doc.AccountCustomizationsName)
	require.Equal(t, req.Customizations, doc.CustomFields)
}

func TestSplitRequesterName(t *testing.T) {
	tests := []struct {
		in    string
		first string
		last  string
	}{
		{"jane.doe@example.com", "Jane", "Doe"},
		{"Jane Doe", "Jane", "Doe"},
		{"jane_van_dam", "Jane", "Dam"},
		{"admin", "Admin", "Admin"},
		{"", "Cloud", "Admin"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			first, last := splitRequesterName(tt.in)
			require.Equal(t, tt.first, first)
			require.Equal(t, tt.last, last)
		})
	}
}
